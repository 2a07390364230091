package compare

import (
	"context"
	"errors"
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"strings"
)

var Logger = logger.GetLogger("compare")

// DefaultScanCount is the COUNT hint passed to SCAN
const DefaultScanCount = 100

// Inconsistency describes one key that differs between source and target
type Inconsistency struct {
	DB     int
	Key    string
	Reason string
}

// Report is the result of a comparison run
type Report struct {
	Databases    int
	KeysChecked  int64
	Skipped      int64
	Inconsistent []Inconsistency
}

// Consistent reports whether no inconsistent keys were found
func (r *Report) Consistent() bool {
	return len(r.Inconsistent) == 0
}

// String returns the human readable report
func (r *Report) String() string {
	var sb strings.Builder
	for _, inc := range r.Inconsistent {
		sb.WriteString(fmt.Sprintf("db%d: key '%s' is NOT consistent (%s)\n", inc.DB, inc.Key, inc.Reason))
	}
	sb.WriteString(fmt.Sprintf("checked %d keys in %d databases, %d inconsistent, %d skipped\n",
		r.KeysChecked, r.Databases, len(r.Inconsistent), r.Skipped))
	return sb.String()
}

// Comparer checks that two stores hold the same data in databases 0..Databases-1
type Comparer struct {
	Source    Opener
	Target    Opener
	Databases int
	ScanCount int64
}

// Run scans every database of the source and compares each key against the target,
// then scans the target the same way to find keys missing in the source.
func (c *Comparer) Run(ctx context.Context) (*Report, error) {
	report := &Report{Databases: c.Databases}
	count := c.ScanCount
	if count <= 0 {
		count = DefaultScanCount
	}

	for db := 0; db < c.Databases; db++ {
		source := c.Source(db)
		target := c.Target(db)

		err := c.compareDB(ctx, db, source, target, count, report)

		closeStore("source", db, source)
		closeStore("target", db, target)
		if err != nil {
			return report, fmt.Errorf("failed to compare db%d: %w", db, err)
		}
	}
	return report, nil
}

// closeStore releases a store, a failing close does not affect the result
func closeStore(name string, db int, store Store) {
	if err := store.Close(); err != nil {
		Logger.Debugf("db%d: failed to close %s store: %v", db, name, err)
	}
}

func (c *Comparer) compareDB(ctx context.Context, db int, source, target Store, count int64, report *Report) error {
	reported := make(map[string]bool)

	passes := []struct {
		from, to         Store
		fromName, toName string
	}{
		{from: source, to: target, fromName: "source", toName: "target"},
		{from: target, to: source, fromName: "target", toName: "source"},
	}

	for _, pass := range passes {
		var cursor uint64
		for {
			keys, next, err := pass.from.Scan(ctx, cursor, count)
			if err != nil {
				return fmt.Errorf("scan %s: %w", pass.fromName, err)
			}

			for _, key := range keys {
				if reported[key] {
					continue
				}
				reason, err := compareKey(ctx, key, pass.from, pass.to, pass.toName)
				if errors.Is(err, ErrUnsupportedType) {
					report.Skipped++
					Logger.Warningf("db%d: skipping key '%s': %v", db, key, err)
					continue
				}
				if err != nil {
					return fmt.Errorf("key '%s': %w", key, err)
				}

				report.KeysChecked++
				if reason != "" {
					reported[key] = true
					report.Inconsistent = append(report.Inconsistent, Inconsistency{DB: db, Key: key, Reason: reason})
					Logger.Debugf("db%d: key '%s' is NOT consistent: %s", db, key, reason)
				}
			}

			cursor = next
			if cursor == 0 {
				break
			}
		}
	}
	return nil
}

// compareKey returns a non empty reason if the key differs between from and to
func compareKey(ctx context.Context, key string, from, to Store, toName string) (string, error) {
	typ, err := from.Type(ctx, key)
	if err != nil {
		return "", err
	}
	if typ == TypeNone {
		// expired or deleted since the scan
		return "", nil
	}

	otherType, err := to.Type(ctx, key)
	if err != nil {
		return "", err
	}
	if otherType == TypeNone {
		return "missing in " + toName, nil
	}
	if otherType != typ {
		return fmt.Sprintf("type %s != %s", typ, otherType), nil
	}

	a, err := from.Value(ctx, key, typ)
	if err != nil {
		return "", err
	}
	b, err := to.Value(ctx, key, typ)
	if err != nil {
		return "", err
	}
	if !a.Equal(b) {
		return "value differs", nil
	}
	return "", nil
}
