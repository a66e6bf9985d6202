package metrics

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tribes-emu/dsovm/pkg/config"
	"github.com/tribes-emu/dsovm/pkg/dso"
	"go.uber.org/zap/zaptest"
)

func get(t *testing.T, url string) string {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestPrometheusService(t *testing.T) {
	// Make sure there is something decoder-related to report.
	_, _ = dso.Decode(nil)

	srv := NewPrometheusService(config.BasicService{
		Enabled:   true,
		Addresses: []string{"127.0.0.1:0"},
	}, zaptest.NewLogger(t))
	require.NoError(t, srv.Start())
	t.Cleanup(srv.ShutDown)
	require.NoError(t, srv.Start())

	body := get(t, "http://"+srv.Addresses()[0]+"/metrics")
	require.Contains(t, body, "dsovm_decode_errors_total")
}

func TestPprofService(t *testing.T) {
	srv := NewPprofService(config.BasicService{
		Enabled:   true,
		Addresses: []string{"127.0.0.1:0"},
	}, zaptest.NewLogger(t))
	require.Equal(t, "Pprof", srv.Name())
	require.NoError(t, srv.Start())
	t.Cleanup(srv.ShutDown)

	body := get(t, "http://"+srv.Addresses()[0]+"/debug/pprof/cmdline")
	require.NotEmpty(t, body)
}

func TestDisabledService(t *testing.T) {
	srv := NewPrometheusService(config.BasicService{Addresses: []string{"127.0.0.1:0"}}, zaptest.NewLogger(t))
	require.NoError(t, srv.Start())
	require.Equal(t, []string{"127.0.0.1:0"}, srv.Addresses())
	srv.ShutDown()

	require.Nil(t, NewPrometheusService(config.BasicService{}, nil))
}
