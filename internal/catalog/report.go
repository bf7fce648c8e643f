package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// ReportRow is one photo with its full keyword list, for export.
type ReportRow struct {
	PhotoID     int64    `json:"photo_id" parquet:"photo_id"`
	Path        string   `json:"path" parquet:"path"`
	FileName    string   `json:"filename" parquet:"filename"`
	Keywords    []string `json:"keywords" parquet:"keywords,list"`
	CaptureTime string   `json:"capture_time,omitempty" parquet:"capture_time,optional"`
	Rating      int64    `json:"rating,omitempty" parquet:"rating,optional"`
}

// KeywordReport lists every photo with its keywords, most recent capture
// first, matching what the catalog itself would show.
func (s *Store) KeywordReport(ctx context.Context) ([]ReportRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			ai.id_local,
			rf.absolutePath || alf.pathFromRoot || af.baseName || '.' || af.extension,
			af.baseName || '.' || af.extension,
			COALESCE(GROUP_CONCAT(k.name, char(31)), ''),
			COALESCE(ai.captureTime, ''),
			COALESCE(ai.rating, 0)
		FROM Adobe_images ai
		INNER JOIN AgLibraryFile af ON ai.rootFile = af.id_local
		INNER JOIN AgLibraryFolder alf ON af.folder = alf.id_local
		INNER JOIN AgLibraryRootFolder rf ON alf.rootFolder = rf.id_local
		LEFT JOIN AgLibraryKeywordImage ki ON ai.id_local = ki.image
		LEFT JOIN AgLibraryKeyword k ON ki.tag = k.id_local
		GROUP BY ai.id_local
		ORDER BY ai.captureTime DESC, ai.id_local`)
	if err != nil {
		return nil, fmt.Errorf("keyword report: %w", err)
	}
	defer rows.Close()

	var report []ReportRow
	for rows.Next() {
		var r ReportRow
		var joined string
		var rating sql.NullInt64
		if err := rows.Scan(&r.PhotoID, &r.Path, &r.FileName, &joined, &r.CaptureTime, &rating); err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		r.Rating = rating.Int64
		r.Keywords = splitConcat(joined)
		report = append(report, r)
	}
	return report, rows.Err()
}

// splitConcat splits a GROUP_CONCAT result on the unit-separator control
// character used above, which cannot appear in keyword names.
func splitConcat(joined string) []string {
	if joined == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(joined); i++ {
		if joined[i] == 0x1f {
			if i > start {
				out = append(out, joined[start:i])
			}
			start = i + 1
		}
	}
	if start < len(joined) {
		out = append(out, joined[start:])
	}
	return out
}
