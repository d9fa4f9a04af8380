package release

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestManifestValidate covers required, multiline and target checks.
func TestManifestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, New("demoapp", "1.2.3", "Demo App").Validate())

	require.ErrorIs(t, New("", "1.2.3", "Demo App").Validate(), ErrFieldRequired)
	require.ErrorIs(t, New("demoapp", " ", "Demo App").Validate(), ErrFieldRequired)
	require.ErrorIs(t, New("demoapp", "1.2.3", "Demo\nApp").Validate(), ErrFieldMultiline)
	require.ErrorIs(t, New("bin/demoapp", "1.2.3", "Demo App").Validate(), ErrInvalidTarget)
	require.ErrorIs(t, New("..", "1.2.3", "Demo App").Validate(), ErrInvalidTarget)
}

// TestManifestClone verifies that Clone copies the checksum map and handles nil safely.
func TestManifestClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*Manifest)(nil).Clone())

	m := New("demoapp", "1.2.3", "Demo App")
	m.Files["linux/demoapp"] = "c3VtCg=="

	c := m.Clone()
	require.Equal(t, m, c)
	require.NotSame(t, m, c)

	c.Files["linux/demoapp"] = "changed"
	require.Equal(t, "c3VtCg==", m.Files["linux/demoapp"])
}
