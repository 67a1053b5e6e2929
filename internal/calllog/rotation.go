package calllog

import (
	"os"
	"time"

	"gorm.io/gorm"
)

// RotationPolicy controls the three independent retention policies of
// spec.md §4.5. Zero disables the corresponding policy.
type RotationPolicy struct {
	AutoRotate bool
	MaxDays    int
	MaxRecords int
	MaxSizeMB  int
}

// RotationPolicyFromEnv reads CLAUDE_C_DB_AUTO_ROTATE, CLAUDE_C_DB_MAX_DAYS,
// CLAUDE_C_DB_MAX_RECORDS, CLAUDE_C_DB_MAX_SIZE_MB with spec.md's defaults:
// auto-rotate on, 30 days, 1000 records, 100MB.
func RotationPolicyFromEnv() RotationPolicy {
	return RotationPolicy{
		AutoRotate: boolEnv("CLAUDE_C_DB_AUTO_ROTATE", true),
		MaxDays:    intEnv("CLAUDE_C_DB_MAX_DAYS", 30),
		MaxRecords: intEnv("CLAUDE_C_DB_MAX_RECORDS", 1000),
		MaxSizeMB:  intEnv("CLAUDE_C_DB_MAX_SIZE_MB", 100),
	}
}

// Rotate applies, in order, rotate-by-age, rotate-by-count, and
// rotate-by-size, then VACUUMs once if any rows were deleted. It returns
// the total number of rows deleted across all three policies.
func (s *Store) Rotate(now time.Time) (int64, error) {
	var total int64

	byAge, err := s.RotateByAge(s.policy.MaxDays, now)
	if err != nil {
		return total, err
	}
	total += byAge

	byCount, err := s.RotateByCount(s.policy.MaxRecords)
	if err != nil {
		return total, err
	}
	total += byCount

	bySize, err := s.RotateBySize(s.policy.MaxSizeMB)
	if err != nil {
		return total, err
	}
	total += bySize

	if total > 0 {
		if err := s.db.Exec("VACUUM").Error; err != nil {
			return total, err
		}
	}
	return total, nil
}

// RotateByAge deletes api_calls rows older than maxDays, cascading to their
// token_usage rows. maxDays <= 0 disables the policy.
func (s *Store) RotateByAge(maxDays int, now time.Time) (int64, error) {
	if maxDays <= 0 {
		return 0, nil
	}
	cutoff := now.Unix() - int64(maxDays)*86400
	return s.deleteApiCallsWhere("created_at < ?", cutoff)
}

// deleteApiCallsWhere deletes token_usage rows for the matching api_calls
// before deleting the api_calls rows themselves, in one transaction. D2's
// cascade is enforced here explicitly rather than left to sqlite's
// ON DELETE CASCADE, which requires `PRAGMA foreign_keys=ON` per connection
// and is easy to silently lose across driver/pool changes.
func (s *Store) deleteApiCallsWhere(where string, args ...any) (int64, error) {
	var affected int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("api_call_id IN (SELECT id FROM api_calls WHERE "+where+")", args...).
			Delete(&TokenUsage{}).Error; err != nil {
			return err
		}
		res := tx.Where(where, args...).Delete(&ApiCall{})
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		return nil
	})
	return affected, err
}

// RotateByCount keeps the maxRecords most recent api_calls rows by
// created_at, deleting the rest. maxRecords <= 0 disables the policy.
func (s *Store) RotateByCount(maxRecords int) (int64, error) {
	if maxRecords <= 0 {
		return 0, nil
	}
	var total int64
	if err := s.db.Model(&ApiCall{}).Count(&total).Error; err != nil {
		return 0, err
	}
	if total <= int64(maxRecords) {
		return 0, nil
	}

	var cutoffID uint
	offset := int(total) - maxRecords
	if err := s.db.Model(&ApiCall{}).
		Order("created_at asc").
		Offset(offset - 1).
		Limit(1).
		Pluck("id", &cutoffID).Error; err != nil {
		return 0, err
	}

	return s.deleteApiCallsWhere("id <= ?", cutoffID)
}

// RotateBySize drops the oldest 25% of rows (by created_at), keeping 75% of
// the current count, when the database file exceeds maxSizeMB. maxSizeMB
// <= 0 disables the policy.
func (s *Store) RotateBySize(maxSizeMB int) (int64, error) {
	if maxSizeMB <= 0 {
		return 0, nil
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return 0, err
	}
	if info.Size() <= int64(maxSizeMB)*1024*1024 {
		return 0, nil
	}

	var total int64
	if err := s.db.Model(&ApiCall{}).Count(&total).Error; err != nil {
		return 0, err
	}
	keep := (total * 3) / 4
	if keep >= total {
		return 0, nil
	}
	drop := total - keep

	var cutoffID uint
	if err := s.db.Model(&ApiCall{}).
		Order("created_at asc").
		Offset(int(drop) - 1).
		Limit(1).
		Pluck("id", &cutoffID).Error; err != nil {
		return 0, err
	}

	return s.deleteApiCallsWhere("id <= ?", cutoffID)
}
