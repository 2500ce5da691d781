package papi_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onefs-tools/gopapi/pkg/papi"
	"github.com/onefs-tools/gopapi/pkg/papi/papitest"
)

func sessionDeletes(srv *papitest.Server) int {
	n := 0
	for _, req := range srv.Requests() {
		if req == "DELETE /session/1/session" {
			n++
		}
	}
	return n
}

func testConfig(srv *papitest.Server) *papi.Config {
	return &papi.Config{
		Host:     srv.Host(),
		Username: "root",
		Password: "a",
		Port:     srv.Port(),
	}
}

func TestWithSession(t *testing.T) {
	srv := papitest.NewServer(papitest.Fixture{})
	defer srv.Close()

	var name string
	err := papi.WithSession(context.Background(), testConfig(srv), func(c *papi.Client) error {
		resp, err := c.Get(context.Background(), "/1/cluster/identity")
		if err != nil {
			return err
		}
		name = resp.GetString("name")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "joshuatree", name)
	assert.Equal(t, 1, sessionDeletes(srv))
	assert.Equal(t, 0, srv.SessionCount())
}

func TestWithSessionDisconnectsOnError(t *testing.T) {
	srv := papitest.NewServer(papitest.Fixture{})
	defer srv.Close()

	err := papi.WithSession(context.Background(), testConfig(srv), func(c *papi.Client) error {
		_, err := c.Get(context.Background(), "/1/no/such/resource")
		return err
	})
	var apiErr *papi.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Status)
	assert.Equal(t, 1, sessionDeletes(srv))
}

func TestWithSessionDisconnectsOnPanic(t *testing.T) {
	srv := papitest.NewServer(papitest.Fixture{})
	defer srv.Close()

	func() {
		defer func() {
			require.NotNil(t, recover())
		}()
		_ = papi.WithSession(context.Background(), testConfig(srv), func(c *papi.Client) error {
			panic("mid-session failure")
		})
	}()
	assert.Equal(t, 1, sessionDeletes(srv))
}

func TestWithSessionConnectFailure(t *testing.T) {
	srv := papitest.NewServer(papitest.Fixture{})
	defer srv.Close()

	cfg := testConfig(srv)
	cfg.Password = "wrong"

	called := false
	err := papi.WithSession(context.Background(), cfg, func(c *papi.Client) error {
		called = true
		return nil
	})
	var apiErr *papi.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.False(t, called)
	// No session was established, so there is nothing to terminate.
	assert.Equal(t, 0, sessionDeletes(srv))
}

func TestWithSessionFnError(t *testing.T) {
	srv := papitest.NewServer(papitest.Fixture{})
	defer srv.Close()

	sentinel := errors.New("caller failure")
	err := papi.WithSession(context.Background(), testConfig(srv), func(c *papi.Client) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
}
