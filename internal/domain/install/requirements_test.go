package install

import (
	"context"
	"errors"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/addonctl/internal/testutil/mocks"
)

func TestParseRequirementSpec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw       string
		name      string
		specifier string
	}{
		{"requests", "requests", ""},
		{"requests>=2.0", "requests", ">=2.0"},
		{"requests >= 2.0, <3", "requests", ">= 2.0, <3"},
		{"ruamel.yaml[jinja2] ~= 0.17; python_version > '3'", "ruamel.yaml", "~= 0.17"},
		{"requests (>=2.0)", "requests", ">=2.0"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			spec, err := ParseRequirementSpec(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.name, spec.Name)
			assert.Equal(t, tt.specifier, spec.Specifier)
		})
	}

	_, err := ParseRequirementSpec("   ")
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestRequirementSpec_Constraint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		specifier string
		accept    []string
		reject    []string
	}{
		{"~=1.4.2", []string{"1.4.2", "1.4.9"}, []string{"1.4.1", "1.5.0"}},
		{"~=2.2", []string{"2.2.0", "2.9.1"}, []string{"2.1.0", "3.0.0"}},
		{"==1.2.*", []string{"1.2.0", "1.2.7"}, []string{"1.3.0"}},
		{"===1.0.0", []string{"1.0.0"}, []string{"1.0.1"}},
		{">=2.0, !=2.1.0, <3", []string{"2.0.0", "2.2.0"}, []string{"2.1.0", "3.0.0"}},
	}

	for _, tt := range tests {
		t.Run(tt.specifier, func(t *testing.T) {
			c, ok := RequirementSpec{Name: "pkg", Specifier: tt.specifier}.constraint()
			require.True(t, ok)
			require.NotNil(t, c)
			for _, v := range tt.accept {
				assert.True(t, c.Check(semver.MustParse(v)), "%s should accept %s", tt.specifier, v)
			}
			for _, v := range tt.reject {
				assert.False(t, c.Check(semver.MustParse(v)), "%s should reject %s", tt.specifier, v)
			}
		})
	}

	_, ok := RequirementSpec{Specifier: "!=1.0.*"}.constraint()
	assert.False(t, ok)
	_, ok = RequirementSpec{Specifier: "~=1"}.constraint()
	assert.False(t, ok)

	c, ok := RequirementSpec{}.constraint()
	assert.True(t, ok)
	assert.Nil(t, c)
}

func pipInstallArgs(spec string) []string {
	return []string{"-m", "pip", "--disable-pip-version-check", "install", spec, "-q"}
}

func TestRequirementInstaller_Ensure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("already satisfied", func(t *testing.T) {
		runner := mocks.NewCommandRunner()
		runner.AddPipShow("python3", "requests", "2.31.0")

		ran, err := NewRequirementInstaller(runner, "", nil).Ensure(ctx, "requests>=2.0")
		require.NoError(t, err)
		assert.False(t, ran)
		assert.Len(t, runner.Calls(), 1)
	})

	t.Run("missing is installed", func(t *testing.T) {
		runner := mocks.NewCommandRunner()
		runner.AddPipShow("python3", "requests", "")
		runner.AddPipInstall("python3", "requests>=2.0", 0)

		ran, err := NewRequirementInstaller(runner, "python3", nil).Ensure(ctx, "requests>=2.0")
		require.NoError(t, err)
		assert.True(t, ran)
		calls := runner.Calls()
		require.Len(t, calls, 2)
		assert.Equal(t, pipInstallArgs("requests>=2.0"), calls[1].Args)
	})

	t.Run("installed version conflicts", func(t *testing.T) {
		runner := mocks.NewCommandRunner()
		runner.AddPipShow("python3", "requests", "1.2.0")

		_, err := NewRequirementInstaller(runner, "python3", nil).Ensure(ctx, "requests>=2.0")
		require.Error(t, err)
		assert.True(t, IsRequirementInstall(err))
		assert.ErrorIs(t, err, ErrVersionConflict)
		assert.Contains(t, err.Error(), `"requests>=2.0"`)
		assert.Len(t, runner.Calls(), 1)
	})

	t.Run("pip exits non-zero", func(t *testing.T) {
		runner := mocks.NewCommandRunner()
		runner.AddPipShow("python3", "nosuchpkg", "")
		runner.AddPipInstall("python3", "nosuchpkg", 1)

		_, err := NewRequirementInstaller(runner, "python3", nil).Ensure(ctx, "nosuchpkg")
		require.Error(t, err)
		var rie *RequirementInstallError
		require.True(t, errors.As(err, &rie))
		assert.Equal(t, "nosuchpkg", rie.Spec)
		assert.Contains(t, err.Error(), "exited with code 1")
	})

	t.Run("inexpressible specifier falls back to pip", func(t *testing.T) {
		runner := mocks.NewCommandRunner()
		runner.AddPipShow("python3", "lib", "1.0.0")
		runner.AddPipInstall("python3", "lib!=0.9.*", 0)

		ran, err := NewRequirementInstaller(runner, "python3", nil).Ensure(ctx, "lib!=0.9.*")
		require.NoError(t, err)
		assert.True(t, ran)
	})

	t.Run("runner error", func(t *testing.T) {
		runner := mocks.NewCommandRunner()
		runner.AddError("python3", []string{"-m", "pip", "--disable-pip-version-check", "show", "requests"}, errors.New("exec: python3 not found"))

		_, err := NewRequirementInstaller(runner, "python3", nil).Ensure(ctx, "requests")
		require.Error(t, err)
		assert.True(t, IsRequirementInstall(err))
	})
}
