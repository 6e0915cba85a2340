package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInfo(t *testing.T) {
	v, c, d := Info()
	require.NotEmpty(t, v)
	require.NotEmpty(t, c)
	require.NotEmpty(t, d)
}

func TestGetVersion(t *testing.T) {
	require.Equal(t, version, GetVersion())
}

func TestString(t *testing.T) {
	s := String()
	require.True(t, strings.HasPrefix(s, "version="+GetVersion()+" "))
	require.Contains(t, s, "commit=")
	require.Contains(t, s, "date=")
}

func TestInfo_PrefersLinkerValues(t *testing.T) {
	oldVersion, oldCommit, oldDate := version, commit, date
	t.Cleanup(func() {
		version, commit, date = oldVersion, oldCommit, oldDate
	})

	version, commit, date = "1.2.3", "abc123", "2026-01-02"
	v, c, d := Info()
	require.Equal(t, "1.2.3", v)
	require.Equal(t, "abc123", c)
	require.Equal(t, "2026-01-02", d)
}
