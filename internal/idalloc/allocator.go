// Package idalloc hands out sequential identifiers computed from the current
// table maximum.
package idalloc

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Next returns MAX(id)+1 for table, or 1 when the table is empty. It must run
// on the transaction that performs the insert; the primary key constraint
// turns a concurrent collision into a duplicate-key error, and the caller's
// unit of work is rerun with a fresh value.
func Next(ctx context.Context, tx *gorm.DB, table string) (int64, error) {
	var next int64
	err := tx.WithContext(ctx).
		Table(table).
		Select("COALESCE(MAX(id), 0) + 1").
		Scan(&next).Error
	if err != nil {
		return 0, fmt.Errorf("failed to allocate id for %s: %w", table, err)
	}
	return next, nil
}
