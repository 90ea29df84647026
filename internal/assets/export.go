package assets

import (
	"bytes"
	"context"
	"encoding/csv"
	"strconv"
)

// ExportCSV renders the full asset inventory as CSV.
func (s *Service) ExportCSV(ctx context.Context, filter ListFilter) ([]byte, error) {
	filter.Page = 1
	filter.PerPage = 10000
	rows, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{"id", "name", "kind", "location", "address", "criticality", "status"}); err != nil {
		return nil, err
	}
	for _, asset := range rows {
		record := []string{
			strconv.FormatInt(asset.ID, 10),
			asset.Name,
			string(asset.Kind),
			asset.Location,
			asset.Address,
			strconv.Itoa(int(asset.Criticality)),
			string(asset.Status),
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
