package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryPreservesOrder(t *testing.T) {
	expiry := &stubJob{name: "subscription-expiry"}
	dunning := &stubJob{name: "invoice-dunning"}
	registry := NewRegistry(expiry, nil, dunning)

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Same(t, expiry, jobs[0])
	assert.Same(t, dunning, jobs[1])
}

func TestRegistrySkipsDuplicateNames(t *testing.T) {
	registry := NewRegistry(&stubJob{name: "subscription-expiry"})
	registry.Register(&stubJob{name: "subscription-expiry"})

	assert.Len(t, registry.Jobs(), 1)
}

func TestRegistryJobsReturnsCopy(t *testing.T) {
	registry := NewRegistry(&stubJob{name: "subscription-expiry"})

	jobs := registry.Jobs()
	jobs[0] = nil
	require.NotNil(t, registry.Jobs()[0])
}
