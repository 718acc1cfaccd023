package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/ledgerline/internal/ledger/domain"
	"github.com/smallbiznis/ledgerline/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*gorm.DB, ledgerdomain.Processor, *snowflake.Node) {
	t.Helper()

	gdb, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&ledgerdomain.LedgerAccount{},
		&ledgerdomain.LedgerEntry{},
		&ledgerdomain.LedgerEntryLine{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return gdb, New(zaptest.NewLogger(t), node), node
}

func paymentCommand(node *snowflake.Node, sourceID snowflake.ID, amount int64) ledgerdomain.Command {
	return ledgerdomain.Command{
		SourceType: ledgerdomain.SourceTypePayment,
		SourceID:   sourceID,
		Currency:   "usd",
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Lines: []ledgerdomain.CommandLine{
			{AccountCode: ledgerdomain.AccountCodeCash, Direction: ledgerdomain.LedgerEntryDirectionDebit, Amount: amount},
			{AccountCode: ledgerdomain.AccountCodeAccountsReceivable, Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: amount},
		},
	}
}

func TestProcessPostsBalancedEntry(t *testing.T) {
	gdb, svc, node := setup(t)
	orgID := node.Generate()

	require.NoError(t, svc.Process(context.Background(), gdb, orgID, true, paymentCommand(node, node.Generate(), 500)))

	var entry ledgerdomain.LedgerEntry
	require.NoError(t, gdb.First(&entry).Error)
	assert.Equal(t, orgID, entry.OrgID)
	assert.True(t, entry.Livemode)

	var lines []ledgerdomain.LedgerEntryLine
	require.NoError(t, gdb.Where("ledger_entry_id = ?", entry.ID).Find(&lines).Error)
	require.Len(t, lines, 2)
}

func TestProcessPersistsTestmodeEntry(t *testing.T) {
	gdb, svc, node := setup(t)
	orgID := node.Generate()

	require.NoError(t, svc.Process(context.Background(), gdb, orgID, false, paymentCommand(node, node.Generate(), 500)))

	// A sandbox command must never be stored as a live entry.
	var entry ledgerdomain.LedgerEntry
	require.NoError(t, gdb.First(&entry).Error)
	assert.False(t, entry.Livemode)
}

func TestProcessReusesAccountsAcrossEntries(t *testing.T) {
	gdb, svc, node := setup(t)
	orgID := node.Generate()

	require.NoError(t, svc.Process(context.Background(), gdb, orgID, true, paymentCommand(node, node.Generate(), 500)))
	require.NoError(t, svc.Process(context.Background(), gdb, orgID, true, paymentCommand(node, node.Generate(), 700)))

	// Two entries share the same two chart-of-accounts rows.
	var accounts int64
	require.NoError(t, gdb.Model(&ledgerdomain.LedgerAccount{}).Count(&accounts).Error)
	assert.Equal(t, int64(2), accounts)
}

func TestProcessSkipsDuplicateSource(t *testing.T) {
	gdb, svc, node := setup(t)
	orgID := node.Generate()
	sourceID := node.Generate()

	require.NoError(t, svc.Process(context.Background(), gdb, orgID, true, paymentCommand(node, sourceID, 500)))
	require.NoError(t, svc.Process(context.Background(), gdb, orgID, true, paymentCommand(node, sourceID, 500)))

	var entries int64
	require.NoError(t, gdb.Model(&ledgerdomain.LedgerEntry{}).Count(&entries).Error)
	assert.Equal(t, int64(1), entries)

	var lines int64
	require.NoError(t, gdb.Model(&ledgerdomain.LedgerEntryLine{}).Count(&lines).Error)
	assert.Equal(t, int64(2), lines)
}

func TestProcessValidation(t *testing.T) {
	gdb, svc, node := setup(t)
	orgID := node.Generate()
	ctx := context.Background()

	cmd := paymentCommand(node, node.Generate(), 500)
	cmd.Currency = " "
	require.ErrorIs(t, svc.Process(ctx, gdb, orgID, true, cmd), ledgerdomain.ErrInvalidCurrency)

	cmd = paymentCommand(node, node.Generate(), 500)
	cmd.Lines = cmd.Lines[:1]
	require.ErrorIs(t, svc.Process(ctx, gdb, orgID, true, cmd), ledgerdomain.ErrInvalidEntryLines)

	cmd = paymentCommand(node, node.Generate(), 500)
	cmd.Lines[1].Amount = 300
	require.ErrorIs(t, svc.Process(ctx, gdb, orgID, true, cmd), ledgerdomain.ErrUnbalancedEntry)

	cmd = paymentCommand(node, node.Generate(), 500)
	cmd.Lines[0].Direction = "sideways"
	require.ErrorIs(t, svc.Process(ctx, gdb, orgID, true, cmd), ledgerdomain.ErrInvalidLineDirection)

	require.ErrorIs(t, svc.Process(ctx, gdb, 0, true, paymentCommand(node, node.Generate(), 500)), ledgerdomain.ErrInvalidOrganization)
}

func TestProcessNormalizesDirectionCase(t *testing.T) {
	gdb, svc, node := setup(t)
	orgID := node.Generate()

	cmd := paymentCommand(node, node.Generate(), 500)
	cmd.Lines[0].Direction = "DEBIT"
	require.NoError(t, svc.Process(context.Background(), gdb, orgID, true, cmd))

	var line ledgerdomain.LedgerEntryLine
	require.NoError(t, gdb.Where("direction = ?", ledgerdomain.LedgerEntryDirectionDebit).First(&line).Error)
}
