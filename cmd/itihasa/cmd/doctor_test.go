package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorCmd_OfflinePasses(t *testing.T) {
	root := newTestProject(t)

	out, err := execute(t, "doctor", "--dir", root, "--offline")

	require.NoError(t, err)
	assert.Contains(t, out, "disk_space")
	assert.Contains(t, out, "write_permissions")
	assert.Contains(t, out, "file_descriptors")
	assert.Contains(t, out, "Status: ready")
}

func TestDoctorCmd_JSONOutput(t *testing.T) {
	root := newTestProject(t)

	out, err := execute(t, "doctor", "--dir", root, "--offline", "--json")

	require.NoError(t, err)
	assert.Contains(t, out, `"status": "ready"`)
	assert.Contains(t, out, `"name": "disk_space"`)
	assert.Contains(t, out, `"PASS"`)
}
