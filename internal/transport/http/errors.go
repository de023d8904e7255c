package http

import (
	apierrors "github.com/gunturawaludins/mkbd-new/internal/errors"
	"github.com/gunturawaludins/mkbd-new/internal/masterdata"
	"github.com/gunturawaludins/mkbd-new/internal/operations"
	"github.com/gunturawaludins/mkbd-new/internal/services"
	"github.com/gunturawaludins/mkbd-new/internal/store"
)

// ErrorMappings binds domain errors to API problems.
func ErrorMappings() []apierrors.Mapping {
	return []apierrors.Mapping{
		{Target: store.ErrTableNotFound, API: apierrors.ErrTableNotFound},
		{Target: operations.ErrJobNotFound, API: apierrors.ErrJobNotFound},
		{Target: services.ErrEntryNotFound, API: apierrors.ErrEntryNotFound},
		{Target: masterdata.ErrNotLoaded, API: apierrors.ErrMasterNotLoaded},
		{Target: services.ErrInvalidFormula, API: apierrors.ErrInvalidFormula},
		{Target: services.ErrMasterLoad, API: apierrors.ErrUnreadableWorkbook},
		{Target: services.ErrEmptyUpload, API: apierrors.ErrMissingFile},
		{Target: services.ErrInvalidArgument, API: apierrors.ErrInvalidRequest},
	}
}
