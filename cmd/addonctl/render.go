package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/addonctl/internal/domain/manager"
	"github.com/felixgeelhaar/addonctl/internal/domain/scheduler"
	"github.com/felixgeelhaar/addonctl/internal/ports"
)

const historyTimeFormat = "2006-01-02 15:04:05"

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func writePage(w io.Writer, page *manager.Page) error {
	if page.Total == 0 {
		_, err := fmt.Fprintln(w, "No plugins found.")
		return err
	}

	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tLATEST\tSTATUS\tAUTHORS\tLABELS")
	for _, e := range page.Entries {
		status := string(e.Status)
		if e.Installed != "" {
			status = fmt.Sprintf("%s (%s)", e.Status, e.Installed)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Record.ID,
			e.Record.DisplayName(),
			e.Record.Latest(),
			status,
			strings.Join(e.Record.AuthorNames(), ", "),
			strings.Join(e.Record.Labels, ", "),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if page.MaxPage > 1 {
		_, err := fmt.Fprintf(w, "\nPage %d/%d (%d plugins)\n", page.Page, page.MaxPage, page.Total)
		return err
	}
	return nil
}

func writeInstalled(w io.Writer, installed []ports.InstalledPlugin) error {
	if len(installed) == 0 {
		_, err := fmt.Fprintln(w, "No plugins installed.")
		return err
	}
	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "ID\tVERSION\tFILE")
	for _, p := range installed {
		file := p.FilePath
		if file == "" {
			file = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Version, file)
	}
	return tw.Flush()
}

func writeCandidates(w io.Writer, candidates []scheduler.Candidate) error {
	if len(candidates) == 0 {
		_, err := fmt.Fprintln(w, "All plugins are up to date.")
		return err
	}
	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "ID\tINSTALLED\tLATEST")
	for _, c := range candidates {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", c.PluginID, c.Installed, c.Latest)
	}
	return tw.Flush()
}

func writeHistory(w io.Writer, entries []ports.JournalEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No history recorded.")
		return err
	}
	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "TIME\tKIND\tPLUGIN\tVERSION\tOUTCOME\tDETAIL")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Local().Format(historyTimeFormat),
			e.Kind,
			dash(e.PluginID),
			dash(e.Version),
			e.Outcome,
			e.Detail,
		)
	}
	return tw.Flush()
}

// infoView is the serialized form of manager.Info.
type infoView struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name"`
	Authors     []string      `yaml:"authors,omitempty"`
	Labels      []string      `yaml:"labels,omitempty"`
	Repository  string        `yaml:"repository,omitempty"`
	Description string        `yaml:"description,omitempty"`
	Status      string        `yaml:"status"`
	Installed   string        `yaml:"installed,omitempty"`
	Latest      string        `yaml:"latest"`
	Releases    []releaseView `yaml:"releases,omitempty"`
}

type releaseView struct {
	Version      string            `yaml:"version"`
	Published    string            `yaml:"published,omitempty"`
	Prerelease   bool              `yaml:"prerelease,omitempty"`
	Dependencies map[string]string `yaml:"dependencies,omitempty"`
	Requirements []string          `yaml:"requirements,omitempty"`
}

func newInfoView(info *manager.Info) infoView {
	v := infoView{
		ID:          info.Record.ID,
		Name:        info.Record.DisplayName(),
		Authors:     info.Record.AuthorNames(),
		Labels:      info.Record.Labels,
		Repository:  info.Record.Repository,
		Description: info.Description,
		Status:      string(info.Status),
		Latest:      info.Latest.String(),
	}
	if info.Installed != nil {
		v.Installed = info.Installed.Version
	}
	for _, r := range info.Releases {
		rv := releaseView{
			Version:      r.Version.String(),
			Prerelease:   r.Prerelease,
			Dependencies: r.Dependencies,
			Requirements: r.Requirements,
		}
		if !r.CreatedAt.IsZero() {
			rv.Published = r.CreatedAt.UTC().Format(time.RFC3339)
		}
		v.Releases = append(v.Releases, rv)
	}
	return v
}

func writeInfoYAML(w io.Writer, info *manager.Info) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(newInfoView(info)); err != nil {
		return fmt.Errorf("encode info: %w", err)
	}
	return enc.Close()
}

func writeInfo(w io.Writer, info *manager.Info) error {
	v := newInfoView(info)

	tw := newTable(w)
	_, _ = fmt.Fprintf(tw, "ID:\t%s\n", v.ID)
	_, _ = fmt.Fprintf(tw, "Name:\t%s\n", v.Name)
	if len(v.Authors) > 0 {
		_, _ = fmt.Fprintf(tw, "Authors:\t%s\n", strings.Join(v.Authors, ", "))
	}
	if len(v.Labels) > 0 {
		_, _ = fmt.Fprintf(tw, "Labels:\t%s\n", strings.Join(v.Labels, ", "))
	}
	if v.Repository != "" {
		_, _ = fmt.Fprintf(tw, "Repository:\t%s\n", v.Repository)
	}
	status := v.Status
	if v.Installed != "" {
		status = fmt.Sprintf("%s (%s)", v.Status, v.Installed)
	}
	_, _ = fmt.Fprintf(tw, "Status:\t%s\n", status)
	_, _ = fmt.Fprintf(tw, "Latest:\t%s\n", v.Latest)
	if err := tw.Flush(); err != nil {
		return err
	}

	if v.Description != "" {
		_, _ = fmt.Fprintf(w, "\n%s\n", v.Description)
	}
	if len(v.Releases) == 0 {
		return nil
	}

	_, _ = fmt.Fprintln(w, "\nReleases:")
	tw = newTable(w)
	for _, r := range v.Releases {
		deps := make([]string, 0, len(r.Dependencies))
		for id, expr := range r.Dependencies {
			deps = append(deps, id+expr)
		}
		sort.Strings(deps)
		published := dash(r.Published)
		if r.Prerelease {
			published += " (prerelease)"
		}
		_, _ = fmt.Fprintf(tw, "  %s\t%s\t%s\n", r.Version, published, strings.Join(deps, ", "))
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
