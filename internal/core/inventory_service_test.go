package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warehouse-ops/internal/core"
)

func TestWarehouseStats(t *testing.T) {
	e := newEngine(t, 2, 1, 3)
	ctx := context.Background()
	e.mustPutaway(t, "BIN-A001", "S1")
	e.mustPutaway(t, "BIN-A001", "S2")
	e.mustPutaway(t, "BIN-A002", "S3")
	e.mustPickup(t, "S3")
	manifest(t, e, "M1")

	stats, err := e.inventory.WarehouseStats(ctx, e.operator)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalBins)
	assert.Equal(t, 2, stats.BinsInUse)
	assert.Equal(t, 1, stats.AvailableBins)
	assert.Equal(t, 6, stats.TotalCapacity)
	assert.Equal(t, 3, stats.UsedCapacity)
	assert.Equal(t, "50", stats.UtilizationRate.String())
	assert.Equal(t, 4, stats.TotalShipments)
	assert.Equal(t, 1, stats.StatusCounts[core.StatusManifested])
	assert.Equal(t, 2, stats.StatusCounts[core.StatusPutaway])
	assert.Equal(t, 1, stats.StatusCounts[core.StatusPicked])
	assert.Equal(t, 0, stats.StatusCounts[core.StatusDelivered])
}

func TestWarehouseStats_RoundsUtilization(t *testing.T) {
	e := newEngine(t, 3)
	e.mustPutaway(t, "BIN-A001", "S1")
	e.mustPutaway(t, "BIN-A001", "S2")

	stats, err := e.inventory.WarehouseStats(context.Background(), e.operator)
	require.NoError(t, err)
	assert.Equal(t, "66.7", stats.UtilizationRate.StringFixed(1))
}

func TestSearchAndPicklist(t *testing.T) {
	e := newEngine(t, 2)
	ctx := context.Background()
	e.mustPutaway(t, "BIN-A001", "S1")

	sh, err := e.inventory.SearchShipment(ctx, e.operator, "s1")
	require.NoError(t, err)
	assert.Equal(t, "BIN-A001", sh.BinCode)

	_, err = e.inventory.SearchShipment(ctx, core.Actor{WarehouseID: "WH2"}, "S1")
	assert.ErrorIs(t, err, core.ErrShipmentNotFound, "shipments are scoped to their warehouse")

	lookup, err := e.inventory.PicklistLookup(ctx, e.operator, []string{"S1", "s1", "NOPE", ""})
	require.NoError(t, err)
	require.Len(t, lookup.Found, 1)
	assert.Equal(t, []string{"NOPE"}, lookup.NotFound)
}

func TestListOperatorsWithLoad(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	manifest(t, e, "A1", "A2", "A3")
	_, err := e.assign.Assign(ctx, e.admin, core.AssignRequest{TrackingIDs: []string{"A1", "A2"}, Target: "OP-2"})
	require.NoError(t, err)

	loads, err := e.inventory.ListOperators(ctx, e.operator)
	require.NoError(t, err)
	require.Len(t, loads, 3)
	assert.Equal(t, "OP-1", loads[0].Operator.ID)
	assert.Equal(t, 2, loads[1].Open)
}

func TestListBins(t *testing.T) {
	e := newEngine(t, 1, 2)
	e.mustPutaway(t, "BIN-A002", "S1")

	bins, err := e.inventory.ListBins(context.Background(), e.operator)
	require.NoError(t, err)
	require.Len(t, bins, 2)
	assert.Equal(t, 0, bins[0].Used)
	assert.Equal(t, 1, bins[1].Used)
	assert.Equal(t, 1, bins[1].Free())
}
