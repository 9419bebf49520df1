package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vipsmoke_erp/internal/config"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["sync"])
	assert.True(t, names["classify"])
}

func TestSyncCmd_RejectsUnknownResource(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"sync", "widgets"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "widgets")
}

func TestSyncCmd_InvalidSince(t *testing.T) {
	loaded := false
	cmd := newSyncCmd(func() (*config.Config, error) {
		loaded = true
		return nil, nil
	})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"products", "--since", "yesterday"})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.False(t, loaded)
}

func TestRunSync_OptionalVendors(t *testing.T) {
	app := &App{Services: &Services{}}

	_, err := runSync(context.Background(), app, "airtable", false, nil)
	assert.EqualError(t, err, "Airtable 未配置")

	_, err = runSync(context.Background(), app, "shipments", false, nil)
	assert.EqualError(t, err, "ShipStation 未配置")

	_, err = runSync(context.Background(), app, "widgets", false, nil)
	assert.Error(t, err)
}
