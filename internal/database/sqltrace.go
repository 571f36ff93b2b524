package database

import (
	"errors"

	"chirp/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const spanKey = "chirp:span"

// sqlTracer is a GORM plugin that wraps each statement in a store span tagged
// with the dialect and table.
type sqlTracer struct{}

func (sqlTracer) Name() string { return "chirp:sqltrace" }

func (sqlTracer) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		op     string
		before func(string, func(*gorm.DB)) error
		after  func(string, func(*gorm.DB)) error
	}{
		{"insert", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"select", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, h := range hooks {
		if err := h.before("chirp:before_"+h.op, startSpan(h.op)); err != nil {
			return err
		}
		if err := h.after("chirp:after_"+h.op, endSpan); err != nil {
			return err
		}
	}
	return nil
}

func startSpan(op string) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		if tx.Statement.Context == nil {
			return
		}
		table := tx.Statement.Table
		if table == "" {
			table = "-"
		}
		ctx, span := observability.TraceStoreOperation(tx.Statement.Context, tx.Dialector.Name(), op, table)
		tx.Statement.Context = ctx
		tx.InstanceSet(spanKey, span)
	}
}

func endSpan(tx *gorm.DB) {
	v, ok := tx.InstanceGet(spanKey)
	if !ok {
		return
	}
	span, ok := v.(trace.Span)
	if !ok {
		return
	}
	if err := tx.Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", tx.RowsAffected))
	span.End()
}
