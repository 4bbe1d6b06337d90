package mcp

import (
	"context"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
)

// mockPipelineService is a mock implementation of driving.PipelineService.
type mockPipelineService struct {
	report  *domain.Report
	lastReq domain.ProcessRequest
	err     error
}

func (m *mockPipelineService) ProcessDocument(
	_ context.Context,
	req domain.ProcessRequest,
) (*domain.Report, error) {
	m.lastReq = req
	return m.report, m.err
}

func (m *mockPipelineService) ResumeSkeleton(
	_ context.Context,
	req domain.ResumeRequest,
) (*domain.Report, error) {
	m.lastReq = req.ProcessRequest
	return m.report, m.err
}

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	answer  *domain.Answer
	lastReq domain.QueryRequest
	err     error
}

func (m *mockQueryService) Ask(
	_ context.Context,
	req domain.QueryRequest,
) (*domain.Answer, error) {
	m.lastReq = req
	return m.answer, m.err
}

// mockInspectService is a mock implementation of driving.InspectService.
type mockInspectService struct {
	health []domain.ComponentHealth
	info   *domain.CollectionInfo
	err    error
}

func (m *mockInspectService) Health(_ context.Context) []domain.ComponentHealth {
	return m.health
}

func (m *mockInspectService) CollectionStats(
	_ context.Context,
	_ string,
) (*domain.CollectionInfo, error) {
	return m.info, m.err
}
