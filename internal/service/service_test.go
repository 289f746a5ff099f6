package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDescriptorsParseProtoSource(t *testing.T) {
	reqMd, respMd, method, err := descriptors()
	require.Nil(t, err)
	require.NotNil(t, reqMd)
	require.NotNil(t, respMd)
	require.NotNil(t, method)
	require.NotNil(t, reqMd.FindFieldByName("source"))
	require.NotNil(t, respMd.FindFieldByName("target"))
	require.NotNil(t, respMd.FindFieldByName("errors"))
}

func TestNewServerBuildsServiceDesc(t *testing.T) {
	s, err := NewServer(nil)
	require.Nil(t, err)
	require.NotNil(t, s.GRPCServer())
}

func TestManagerReusesStateForSameSession(t *testing.T) {
	m := NewManager(nil)
	id := uuid.New()

	e1 := m.entry(id)
	e2 := m.entry(id)
	require.Same(t, e1, e2)
	require.Same(t, e1.state, e2.state)
}

func TestManagerGivesDistinctSessionsDistinctState(t *testing.T) {
	m := NewManager(nil)
	e1 := m.entry(uuid.New())
	e2 := m.entry(uuid.New())
	require.NotSame(t, e1.state, e2.state)
}
