package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stream_port: 9090\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.StreamPort)
	require.Equal(t, 12345, cfg.UDPPort)
	require.Equal(t, 20*time.Millisecond, cfg.MixInterval)
	require.Equal(t, 5*time.Second, cfg.ActivityTimeout)
	require.Equal(t, 50, cfg.MaxHistory)
	require.False(t, cfg.TLS.Enabled)
}

func TestLoadOverridesEveryField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
udp_port: 22345
stream_port: 9999
mix_interval: 30ms
activity_timeout: 10s
max_history: 10
max_frame_payload: 1024
max_datagram_size: 4096
admin_addr: ":9091"
log_level: debug
tls:
  enabled: true
  cert_file: /etc/voicerelay/cert.pem
  key_file: /etc/voicerelay/key.pem
  dh_params_file: /etc/voicerelay/dh.pem
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 22345, cfg.UDPPort)
	require.Equal(t, 9999, cfg.StreamPort)
	require.Equal(t, 30*time.Millisecond, cfg.MixInterval)
	require.Equal(t, 10*time.Second, cfg.ActivityTimeout)
	require.Equal(t, 10, cfg.MaxHistory)
	require.EqualValues(t, 1024, cfg.MaxFramePayload)
	require.Equal(t, 4096, cfg.MaxDatagramSize)
	require.Equal(t, ":9091", cfg.AdminAddr)
	require.Equal(t, "debug", cfg.LogLevel)
	require.True(t, cfg.TLS.Enabled)
	require.Equal(t, "/etc/voicerelay/cert.pem", cfg.TLS.CertFile)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}
