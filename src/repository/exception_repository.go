package repository

import (
	"context"
	"encoding/json"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/database"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
)

// ExceptionRepository handles persistence of system exceptions.
type ExceptionRepository struct {
	db *gorm.DB
}

// NewExceptionRepository creates a new repository instance.
func NewExceptionRepository() *ExceptionRepository {
	return &ExceptionRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *ExceptionRepository) WithDB(db *gorm.DB) *ExceptionRepository {
	return &ExceptionRepository{db: db}
}

// Create persists a new exception in the database.
func (r *ExceptionRepository) Create(
	ctx context.Context,
	exc *model.Exception,
) error {

	logger.WithFields(map[string]interface{}{
		"service": exc.Service,
		"module":  exc.Module,
		"method":  exc.Method,
		"level":   exc.Level,
	}).Error("Persisting system exception")

	return r.db.WithContext(ctx).Create(exc).Error
}

// Record is a convenience wrapper used on the trading path: any error that
// forces a fail-closed decision must leave a persisted trace. Persistence
// errors are logged and swallowed, recording an exception must never fail
// the decision itself.
func (r *ExceptionRepository) Record(
	ctx context.Context,
	module, method string,
	cause error,
	context_ map[string]interface{},
) {
	ctxJSON := ""
	if len(context_) > 0 {
		if b, err := json.Marshal(context_); err == nil {
			ctxJSON = string(b)
		}
	}

	exc := &model.Exception{
		Service: "trade_gate",
		Module:  module,
		Method:  method,
		Message: cause.Error(),
		Level:   "error",
		Context: ctxJSON,
	}

	if err := r.Create(ctx, exc); err != nil {
		logger.WithFields(map[string]interface{}{
			"module": module,
			"method": method,
		}).WithError(err).Error("Failed to persist exception record")
	}
}
