package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/gpuwatch/internal/errors"
	"github.com/rileyhilliard/gpuwatch/internal/telemetry"
	ttesting "github.com/rileyhilliard/gpuwatch/internal/telemetry/testing"
)

func savedConnections(t *testing.T) []telemetry.ConnectionInfo {
	t.Helper()
	s, err := openSession(sessionOptions{})
	require.NoError(t, err)
	defer s.Close()
	return s.mgr.Connections()
}

func TestConnAddProbesAndSaves(t *testing.T) {
	setupCLI(t, "")
	srv := ttesting.NewFakeServer(ttesting.GPU{Index: 0, Name: "Card A", MemoryTotal: 8192})
	defer srv.Close()
	host, port := srv.Addr()

	var buf bytes.Buffer
	require.NoError(t, connAdd(&buf, ConnAddOptions{Name: "lab", Host: host, Port: port}))

	assert.Contains(t, buf.String(), "Testing lab")
	assert.Contains(t, buf.String(), "Added connection 'lab' (#1")
	assert.Contains(t, srv.Commands(), telemetry.CommandSample)

	conns := savedConnections(t)
	require.Len(t, conns, 1)
	assert.Equal(t, "lab", conns[0].Name)
	assert.Equal(t, port, conns[0].Port)
}

func TestConnAddDefaultsPort(t *testing.T) {
	setupCLI(t, "")

	var buf bytes.Buffer
	require.NoError(t, connAdd(&buf, ConnAddOptions{Name: "lab", Host: "gpu-box", SkipTest: true}))

	conns := savedConnections(t)
	require.Len(t, conns, 1)
	assert.Equal(t, DefaultPort, conns[0].Port)
	assert.Equal(t, "ws://gpu-box:8080/", conns[0].URL)
}

func TestConnAddUnreachableIsNotSaved(t *testing.T) {
	setupCLI(t, "")
	d := ttesting.NewFakeDialer()
	d.FailWith(fmt.Errorf("dial tcp: connect: connection refused"))
	useDialer(d)

	var buf bytes.Buffer
	err := connAdd(&buf, ConnAddOptions{Name: "lab", Host: "gpu-box", Port: "9000"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrTransport))
	assert.Contains(t, err.Error(), "--skip-test")
	assert.Empty(t, savedConnections(t))
}

func TestConnAddSkipTestDoesNotDial(t *testing.T) {
	setupCLI(t, "")
	d := ttesting.NewFakeDialer()
	useDialer(d)

	var buf bytes.Buffer
	require.NoError(t, connAdd(&buf, ConnAddOptions{Name: "lab", Host: "gpu-box", Port: "9000", SkipTest: true}))
	assert.Zero(t, d.Attempts())
	assert.Len(t, savedConnections(t), 1)
}

func TestConnAddMissingFieldsNonInteractive(t *testing.T) {
	setupCLI(t, "")

	var buf bytes.Buffer
	err := connAdd(&buf, ConnAddOptions{Name: "lab"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrValidation))
	assert.Empty(t, savedConnections(t))
}

func TestConnAddWarnsOnDuplicateName(t *testing.T) {
	setupCLI(t, "")

	var buf bytes.Buffer
	require.NoError(t, connAdd(&buf, ConnAddOptions{Name: "lab", Host: "a", Port: "1", SkipTest: true}))
	buf.Reset()
	require.NoError(t, connAdd(&buf, ConnAddOptions{Name: "Lab", Host: "b", Port: "2", SkipTest: true}))

	assert.Contains(t, buf.String(), "already exists (#1)")
	assert.Contains(t, buf.String(), "(#2,")
	assert.Len(t, savedConnections(t), 2)
}

func TestConnAddAliasHint(t *testing.T) {
	env := setupCLI(t, "")
	env.writeSSHConfig(t, "Host rig\n  HostName 10.0.0.9\n")

	var buf bytes.Buffer
	require.NoError(t, connAdd(&buf, ConnAddOptions{Name: "rig", Host: "rig", Port: "9000", SkipTest: true}))
	assert.Contains(t, buf.String(), "'rig' is an SSH alias for 10.0.0.9")
	assert.Contains(t, buf.String(), "resolve_ssh_aliases true")
}

func TestConnAddResolvesAliasWhenEnabled(t *testing.T) {
	env := setupCLI(t, "resolve_ssh_aliases: true\n")
	env.writeSSHConfig(t, "Host rig\n  HostName 10.0.0.9\n")
	d := ttesting.NewFakeDialer()
	d.FailWith(fmt.Errorf("connection refused"))
	useDialer(d)

	var buf bytes.Buffer
	_ = connAdd(&buf, ConnAddOptions{Name: "rig", Host: "rig", Port: "9000"})
	assert.NotContains(t, buf.String(), "is an SSH alias")
	assert.Equal(t, []string{"ws://10.0.0.9:9000/"}, d.URLs())
}

func TestConnRemove(t *testing.T) {
	setupCLI(t, "")
	var buf bytes.Buffer
	require.NoError(t, connAdd(&buf, ConnAddOptions{Name: "lab", Host: "a", Port: "1", SkipTest: true}))
	require.NoError(t, connAdd(&buf, ConnAddOptions{Name: "rig", Host: "b", Port: "2", SkipTest: true}))

	buf.Reset()
	require.NoError(t, connRemove(&buf, ConnRemoveOptions{Ref: "1", Yes: true}))
	assert.Contains(t, buf.String(), "Removed connection 'lab'")

	require.NoError(t, connRemove(&buf, ConnRemoveOptions{Ref: "rig", Yes: true}))
	assert.Empty(t, savedConnections(t))
}

func TestConnRemoveErrors(t *testing.T) {
	setupCLI(t, "")
	var buf bytes.Buffer

	err := connRemove(&buf, ConnRemoveOptions{Ref: "1", Yes: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No connections saved")

	require.NoError(t, connAdd(&buf, ConnAddOptions{Name: "lab", Host: "a", Port: "1", SkipTest: true}))

	err = connRemove(&buf, ConnRemoveOptions{Ref: "nope", Yes: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Saved connections: lab")

	err = connRemove(&buf, ConnRemoveOptions{Yes: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Which connection?")

	err = connRemove(&buf, ConnRemoveOptions{Ref: "lab"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
	assert.Len(t, savedConnections(t), 1)
}

func TestConnListEmpty(t *testing.T) {
	setupCLI(t, "")

	var buf bytes.Buffer
	require.NoError(t, connList(&buf, false, DefaultProbeTimeout))
	assert.Contains(t, buf.String(), "No connections saved.")
	assert.Contains(t, buf.String(), "gpuwatch conn add")
}

func TestConnListTable(t *testing.T) {
	setupCLI(t, "")
	var buf bytes.Buffer
	require.NoError(t, connAdd(&buf, ConnAddOptions{Name: "lab", Host: "gpu-box", Port: "9000", SkipTest: true}))

	buf.Reset()
	require.NoError(t, connList(&buf, false, DefaultProbeTimeout))
	assert.Contains(t, buf.String(), "lab")
	assert.Contains(t, buf.String(), "ws://gpu-box:9000/")
	assert.NotContains(t, buf.String(), "STATUS")
}

func TestConnListCheckJSON(t *testing.T) {
	setupCLI(t, "")
	srv := ttesting.NewFakeServer(ttesting.GPU{Index: 0, Name: "Card A", MemoryTotal: 8192, Utilization: 40})
	defer srv.Close()
	host, port := srv.Addr()

	var buf bytes.Buffer
	require.NoError(t, connAdd(&buf, ConnAddOptions{Name: "up", Host: host, Port: port, SkipTest: true}))
	require.NoError(t, connAdd(&buf, ConnAddOptions{Name: "down", Host: "127.0.0.1", Port: "1", SkipTest: true}))

	machineMode = true
	buf.Reset()
	require.NoError(t, connList(&buf, true, DefaultProbeTimeout))

	var env struct {
		Success bool             `json:"success"`
		Data    []connectionJSON `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.True(t, env.Success)
	require.Len(t, env.Data, 2)

	require.NotNil(t, env.Data[0].Reached)
	assert.True(t, *env.Data[0].Reached)
	require.Len(t, env.Data[0].GPUs, 1)
	assert.Equal(t, "Card A", env.Data[0].GPUs[0].Name)
	assert.Equal(t, 8.0, env.Data[0].GPUs[0].MemoryTotalGB)

	require.NotNil(t, env.Data[1].Reached)
	assert.False(t, *env.Data[1].Reached)
	assert.NotEmpty(t, env.Data[1].Error)
}

func TestConnTestAddress(t *testing.T) {
	setupCLI(t, "")
	srv := ttesting.NewFakeServer(ttesting.GPU{Index: 0, Name: "Card A", MemoryUsed: 2048, MemoryTotal: 8192, Temperature: 61})
	defer srv.Close()
	host, port := srv.Addr()

	var buf bytes.Buffer
	require.NoError(t, connTest(&buf, ConnTestOptions{Ref: host + ":" + port}))

	out := buf.String()
	assert.Contains(t, out, "server: connected")
	assert.Contains(t, out, "GPU0 Card A")
	assert.Contains(t, out, "mem  25%")
	assert.Contains(t, out, "temp  61°C")
}

func TestConnTestSavedFailure(t *testing.T) {
	setupCLI(t, "")
	var buf bytes.Buffer
	require.NoError(t, connAdd(&buf, ConnAddOptions{Name: "lab", Host: "gpu-box", Port: "9000", SkipTest: true}))

	d := ttesting.NewFakeDialer()
	d.FailWith(fmt.Errorf("dial tcp: connect: connection refused"))
	useDialer(d)

	buf.Reset()
	err := connTest(&buf, ConnTestOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 connection unreachable")
	assert.Contains(t, buf.String(), "connection refused")
}

func TestConnTestNothingToTest(t *testing.T) {
	setupCLI(t, "")

	err := connTest(&bytes.Buffer{}, ConnTestOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrValidation))

	err = connTest(&bytes.Buffer{}, ConnTestOptions{Ref: "nope"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrValidation))
}

func TestSplitHostPort(t *testing.T) {
	tests := []struct {
		ref        string
		host, port string
		ok         bool
	}{
		{"gpu-box:8080", "gpu-box", "8080", true},
		{"[::1]:9000", "::1", "9000", true},
		{"gpu-box", "", "", false},
		{"gpu-box:", "", "", false},
		{":8080", "", "", false},
		{"gpu-box:http", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			host, port, ok := splitHostPort(tt.ref)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.port, port)
		})
	}
}

func TestDeviceRows(t *testing.T) {
	rows := deviceRows([]telemetry.Sample{{Index: 1, Name: "Card", MemoryUsed: 512, MemoryTotal: 2048, Utilization: 30, Temperature: 50}})
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Index)
	assert.Equal(t, 2.0, rows[0].MemoryTotalGB)
	assert.Equal(t, 25.0, rows[0].MemoryPercent)
}
