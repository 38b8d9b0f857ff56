package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentyang1210/pion/errors"
	"github.com/vincentyang1210/pion/plugin"
	"github.com/vincentyang1210/pion/scheduler"
)

const serverDoc = `<Server>
  <Port>8080</Port>
  <Comment>front end</Comment>
  <Service path="/"><Plugin>GreeterService</Plugin></Service>
  <Service path="/api/"><Plugin>GreeterService</Plugin></Service>
</Server>`

func newConfiguredLoader(t *testing.T) *plugin.Loader {
	t.Helper()
	loader := plugin.NewLoader(nil)
	require.NoError(t, loader.RegisterBuiltin("GreeterService",
		func() any { return ServiceFunc(helloService) }))
	require.NoError(t, loader.RegisterBuiltin("NotAService",
		func() any { return 42 }))
	return loader
}

func TestParseServerConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(serverDoc))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	require.Len(t, cfg.Services, 2)
	assert.Equal(t, "/api/", cfg.Services[1].Path)
	assert.Equal(t, "GreeterService", cfg.Services[1].Plugin)

	_, err = ParseConfig([]byte("<Server><Port>"))
	assert.ErrorIs(t, err, errors.ErrMalformed)
}

func TestSetConfigRegistersServices(t *testing.T) {
	cfg, err := ParseConfig([]byte(serverDoc))
	require.NoError(t, err)

	srv := New(nil, scheduler.New())
	require.NoError(t, srv.SetConfig(newConfiguredLoader(t), cfg))

	_, ok := srv.dispatch.lookup("/api/things")
	assert.True(t, ok)
}

func TestSetConfigErrors(t *testing.T) {
	loader := newConfiguredLoader(t)
	srv := New(nil, scheduler.New())

	err := srv.SetConfig(loader, Config{Services: []ServiceConfig{{Path: "/"}}})
	assert.ErrorIs(t, err, errors.ErrMissingConfig)

	err = srv.SetConfig(loader, Config{Services: []ServiceConfig{
		{Path: "/", Plugin: "NoSuchService"}}})
	assert.ErrorIs(t, err, errors.ErrPluginNotFound)

	err = srv.SetConfig(loader, Config{Services: []ServiceConfig{
		{Path: "/", Plugin: "NotAService"}}})
	require.Error(t, err)
	assert.Equal(t, errors.KindInvalidConfig, errors.Classify(err))
}
