package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/csledger/internal/changesource"
)

// listChangeSourcesSQL outer-joins identities to ownership so unowned
// sources appear with a NULL master_id.
const listChangeSourcesSQL = `
	SELECT cs.id, cs.name, cm.master_id
	FROM changesources cs
	LEFT OUTER JOIN changesource_masters cm ON cs.id = cm.changesource_id
`

// ListChangeSources returns the change sources selected by filter, ordered by ID.
//
// changesource.Empty returns without querying the store.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ListChangeSources(ctx context.Context, filter changesource.Filter) ([]changesource.View, error) {
	var (
		where string
		args  []any
	)

	switch f := filter.(type) {
	case changesource.Empty:
		return []changesource.View{}, nil
	case changesource.ByID:
		where, args = "WHERE cs.id = ?", []any{f.ID}
	case changesource.ByOwner:
		where, args = "WHERE cm.master_id = ?", []any{string(f.Master)}
	case changesource.ByActive:
		if f.Active {
			where = "WHERE cm.master_id IS NOT NULL"
		} else {
			where = "WHERE cm.master_id IS NULL"
		}
	case changesource.All, nil:
	default:
		return nil, fmt.Errorf("list change sources: unsupported filter %T", filter)
	}

	rows, err := s.db.QueryContext(ctx, listChangeSourcesSQL+where+" ORDER BY cs.id ASC", args...)
	if err != nil {
		return nil, classify("list change sources", 0, "", err)
	}
	defer rows.Close()

	views := []changesource.View{}
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, classify("scan change source", 0, "", err)
		}
		views = append(views, v)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("iterate change sources", 0, "", err)
	}

	return views, nil
}

// GetChangeSource returns the view of a single change source.
// The boolean is false if id was never created.
func (s *Store) GetChangeSource(ctx context.Context, id changesource.ID) (changesource.View, bool, error) {
	views, err := s.ListChangeSources(ctx, changesource.ByID{ID: id})
	if err != nil {
		return changesource.View{}, false, err
	}
	if len(views) == 0 {
		return changesource.View{}, false, nil
	}
	return views[0], true, nil
}

// scanView scans a directory row into a View.
func scanView(rows *sql.Rows) (changesource.View, error) {
	var (
		v      changesource.View
		master sql.NullString
	)
	if err := rows.Scan(&v.ID, &v.Name, &master); err != nil {
		return changesource.View{}, err
	}
	if master.Valid {
		v.Owner = changesource.MasterID(master.String)
	}
	return v, nil
}
