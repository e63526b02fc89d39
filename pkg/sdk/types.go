package rci

import (
	"github.com/kailas-cloud/rci/internal/domain"
	healthuc "github.com/kailas-cloud/rci/internal/usecase/health"
	statusuc "github.com/kailas-cloud/rci/internal/usecase/status"
)

// Request and response types re-exported from the domain layer.
type (
	ComponentDoc   = domain.ComponentDoc
	Filters        = domain.Filters
	SearchRequest  = domain.SearchRequest
	SearchResponse = domain.SearchResponse
	SyncRequest    = domain.SyncRequest
	SyncResponse   = domain.SyncResponse
	StatusReport   = statusuc.Report
	HealthReport   = healthuc.Report
)
