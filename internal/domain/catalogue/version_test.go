package catalogue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "1.2.3", want: "1.2.3"},
		{input: "v2.0.0", want: "v2.0.0"},
		{input: " 1.2 ", want: "1.2"},
		{input: "1.0.0-beta.1", want: "1.0.0-beta.1"},
		{input: "", wantErr: true},
		{input: "not-a-version", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			v, err := ParseVersion(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidVersion)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}
}

func TestVersion_Compare(t *testing.T) {
	t.Parallel()

	v1 := MustParseVersion("1.0.0")
	v2 := MustParseVersion("2.0.0")
	pre := MustParseVersion("2.0.0-rc.1")
	sentinel := NegativeInfinity()

	assert.True(t, v1.LessThan(v2))
	assert.True(t, v2.GreaterThan(v1))
	assert.True(t, pre.LessThan(v2))
	assert.True(t, v1.Equal(MustParseVersion("1.0")))

	assert.True(t, sentinel.IsSentinel())
	assert.True(t, sentinel.LessThan(MustParseVersion("0.0.1")))
	assert.True(t, sentinel.Equal(NegativeInfinity()))
	assert.Equal(t, "N/A", sentinel.String())
}

func TestRequirement_Accept(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expr    string
		version string
		want    bool
	}{
		{"*", "0.0.1", true},
		{"", "9.9.9", true},
		{">=1.0.0", "1.0.0", true},
		{">=1.0.0", "0.9.9", false},
		{">1.0", "1.0.1", true},
		{"<2.0.0", "2.0.0", false},
		{"<=2.0.0", "2.0.0", true},
		{"==1.2.3", "1.2.3", true},
		{"==1.2.3", "1.2.4", false},
		{"~1.2", "1.2.9", true},
		{"~1.2", "1.3.0", false},
		{">=1.0, <2.0", "1.5.0", true},
		{">=1.0, <2.0", "2.1.0", false},
		{">=1.0 <2.0", "1.9.9", true},
		{">=1.0.0", "2.0.0-beta.1", true},
		{">=2.0.0", "2.0.0-beta.1", false},
		{"<2.0.0", "2.0.0-beta.1", true},
		{"<1.5.0", "2.0.0-beta.1", false},
		{"==1.0.0", "1.0.0-rc.1", false},
		{"==1.0.0-rc.1", "1.0.0-rc.1", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr+"/"+tt.version, func(t *testing.T) {
			t.Parallel()

			req, err := ParseRequirement(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.Accept(MustParseVersion(tt.version)))
		})
	}
}

func TestRequirement_PrereleaseMatchesLatest(t *testing.T) {
	t.Parallel()

	p := &PluginRecord{ID: "foo", Releases: []Release{
		{Version: MustParseVersion("2.0.0-beta.1"), Prerelease: true, Assets: []Asset{{Name: "foo-2.0.0-beta.1.mcdr"}}},
		{Version: MustParseVersion("1.0.0"), Assets: []Asset{{Name: "foo-1.0.0.mcdr"}}},
	}}
	snap := NewSnapshot([]*PluginRecord{p}, time.Now())

	latest := p.Latest()
	require.Equal(t, "2.0.0-beta.1", latest.String())

	r, err := ResolveRelease(snap, "foo", MustParseRequirement(">=1.0.0"))
	require.NoError(t, err)
	assert.True(t, r.Version.Equal(latest), "a constrained install picks the release Latest reports")

	r, err = ResolveRelease(snap, "foo", AnyRequirement())
	require.NoError(t, err)
	assert.True(t, r.Version.Equal(latest))
}

func TestRequirement_RejectsSentinel(t *testing.T) {
	t.Parallel()

	assert.False(t, AnyRequirement().Accept(NegativeInfinity()))
	assert.False(t, MustParseRequirement(">=0.0.0").Accept(NegativeInfinity()))
}

func TestParseRequirement_Invalid(t *testing.T) {
	t.Parallel()

	_, err := ParseRequirement(">=banana")
	require.ErrorIs(t, err, ErrInvalidRequirement)
}

func TestRequirement_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "*", AnyRequirement().String())
	assert.Equal(t, "*", Requirement{}.String())
	assert.Equal(t, ">=1.0", MustParseRequirement(" >=1.0 ").String())
	assert.True(t, MustParseRequirement("").IsAny())
	assert.False(t, MustParseRequirement("^1.0").IsAny())
}
