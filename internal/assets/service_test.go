package assets

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryAssetRepo struct {
	assets map[int64]Asset
	nextID int64
}

func newMemoryAssetRepo() *memoryAssetRepo {
	return &memoryAssetRepo{assets: make(map[int64]Asset)}
}

func (r *memoryAssetRepo) Get(ctx context.Context, id int64) (Asset, error) {
	asset, ok := r.assets[id]
	if !ok {
		return Asset{}, ErrNotFound
	}
	return asset, nil
}

func (r *memoryAssetRepo) List(ctx context.Context, filter ListFilter) ([]Asset, int, error) {
	var out []Asset
	for _, asset := range r.assets {
		if filter.Kind != "" && asset.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && asset.Status != filter.Status {
			continue
		}
		out = append(out, asset)
	}
	return out, len(out), nil
}

func (r *memoryAssetRepo) Update(ctx context.Context, asset Asset) error {
	if _, ok := r.assets[asset.ID]; !ok {
		return ErrNotFound
	}
	r.assets[asset.ID] = asset
	return nil
}

func (r *memoryAssetRepo) Create(ctx context.Context, asset Asset) (int64, error) {
	r.nextID++
	asset.ID = r.nextID
	r.assets[asset.ID] = asset
	return asset.ID, nil
}

func seedAsset(repo *memoryAssetRepo) int64 {
	id, _ := repo.Create(context.Background(), Asset{
		Name:        "Substation PLC 4",
		Kind:        KindOT,
		Location:    "Hall B",
		Address:     "10.20.4.17",
		Criticality: 4,
		Status:      AssetActive,
	})
	return id
}

func TestApplyChangePatchesFields(t *testing.T) {
	repo := newMemoryAssetRepo()
	id := seedAsset(repo)
	svc := NewService(repo, nil, nil)

	status := "MAINTENANCE"
	location := "Hall C"
	payload, err := json.Marshal(ChangePayload{Status: &status, Location: &location})
	require.NoError(t, err)

	require.NoError(t, svc.ApplyChange(context.Background(), id, payload))

	asset, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, AssetMaintenance, asset.Status)
	require.Equal(t, "Hall C", asset.Location)
	// Untouched fields survive.
	require.Equal(t, "Substation PLC 4", asset.Name)
	require.Equal(t, int16(4), asset.Criticality)
}

func TestApplyChangeRejectsInvalidPayload(t *testing.T) {
	repo := newMemoryAssetRepo()
	id := seedAsset(repo)
	svc := NewService(repo, nil, nil)

	err := svc.ApplyChange(context.Background(), id, json.RawMessage(`{"status":"BROKEN"}`))
	require.ErrorIs(t, err, ErrValidation)

	err = svc.ApplyChange(context.Background(), id, json.RawMessage(`{bad json`))
	require.ErrorIs(t, err, ErrValidation)

	asset, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, AssetActive, asset.Status)
}

func TestApplyChangeUnknownAsset(t *testing.T) {
	svc := NewService(newMemoryAssetRepo(), nil, nil)
	err := svc.ApplyChange(context.Background(), 99, json.RawMessage(`{}`))
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestExportCSV(t *testing.T) {
	repo := newMemoryAssetRepo()
	seedAsset(repo)
	svc := NewService(repo, nil, nil)

	data, err := svc.ExportCSV(context.Background(), ListFilter{Kind: KindOT})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "id,name,kind,location,address,criticality,status", lines[0])
	require.Contains(t, lines[1], "Substation PLC 4")
	require.Contains(t, lines[1], "OT")
}
