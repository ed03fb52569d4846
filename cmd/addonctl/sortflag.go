package main

import (
	"github.com/felixgeelhaar/addonctl/internal/domain/catalogue"
)

// sortKeyValue adapts catalogue.SortKey to a pflag value.
type sortKeyValue struct {
	key *catalogue.SortKey
}

func (v sortKeyValue) String() string {
	if v.key == nil {
		return ""
	}
	return string(*v.key)
}

func (v sortKeyValue) Set(s string) error {
	key, err := catalogue.ParseSortKey(s)
	if err != nil {
		return err
	}
	*v.key = key
	return nil
}

func (v sortKeyValue) Type() string {
	return "sort"
}
