package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/otcl-exchange/otcl-settlement/internal/model"
)

// setupMockDB 创建 mock 数据库连接
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		Conn:       db,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open gorm db: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return gormDB, mock, cleanup
}

// orderColumns 返回 otc_orders 表的所有列名
func orderColumns() []string {
	return []string{
		"id", "order_id", "trader", "price", "quantity", "remaining_quantity",
		"status", "created_at", "expiration_at", "is_multisig", "multisig_threshold",
		"multisig_group", "approvals", "priority", "commit_hash", "updated_at",
	}
}

func TestOrderRepository_Create_Success(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewOrderRepository(db)
	ctx := context.Background()

	now := time.Now().Unix()
	order := &model.Order{
		OrderID:           "O123456789",
		Trader:            "alice",
		Price:             2000,
		Quantity:          100,
		RemainingQuantity: 100,
		Status:            model.OrderStatusOpen,
		CreatedAt:         now,
		ExpirationAt:      now + 3600,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "otc_orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.Create(ctx, order)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByOrderID_Success(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewOrderRepository(db)
	ctx := context.Background()
	orderID := "O123456789"
	now := time.Now().Unix()

	rows := sqlmock.NewRows(orderColumns()).AddRow(
		1, orderID, "alice", 2000, 100, 100,
		0, now, now+3600, false, 0,
		"", 0, 0, nil, time.Now().UnixMilli(),
	)

	// GORM First() 会添加 ORDER BY id LIMIT 1
	mock.ExpectQuery(`SELECT \* FROM "otc_orders" WHERE order_id = \$1 ORDER BY "otc_orders"\."id" LIMIT \$2`).
		WithArgs(orderID, 1).
		WillReturnRows(rows)

	order, err := repo.GetByOrderID(ctx, orderID)

	assert.NoError(t, err)
	assert.NotNil(t, order)
	assert.Equal(t, orderID, order.OrderID)
	assert.Equal(t, uint64(100), order.RemainingQuantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByOrderID_NotFound(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewOrderRepository(db)
	ctx := context.Background()
	orderID := "O999999999"

	mock.ExpectQuery(`SELECT \* FROM "otc_orders" WHERE order_id = \$1 ORDER BY "otc_orders"\."id" LIMIT \$2`).
		WithArgs(orderID, 1).
		WillReturnError(gorm.ErrRecordNotFound)

	order, err := repo.GetByOrderID(ctx, orderID)

	assert.Nil(t, order)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_UpdateStatus_Success(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewOrderRepository(db)
	ctx := context.Background()
	orderID := "O123456789"

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "otc_orders" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateStatus(ctx, orderID, model.OrderStatusOpen, model.OrderStatusCancelled)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_UpdateStatus_Conflict(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewOrderRepository(db)
	ctx := context.Background()
	orderID := "O123456789"

	// 状态已被并发修改, 条件更新影响 0 行
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "otc_orders" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.UpdateStatus(ctx, orderID, model.OrderStatusOpen, model.OrderStatusFilled)

	assert.ErrorIs(t, err, ErrOptimisticLock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_UpdateFill_Conflict(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewOrderRepository(db)
	ctx := context.Background()

	// 剩余数量与条件不符, 并发成交只有一个生效
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "otc_orders" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.UpdateFill(ctx, "O123456789", 100, 40, model.OrderStatusOpen)

	assert.ErrorIs(t, err, ErrOptimisticLock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_ListExpiredOrders(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewOrderRepository(db)
	ctx := context.Background()
	now := time.Now().Unix()

	rows := sqlmock.NewRows(orderColumns()).
		AddRow(1, "O1", "alice", 2000, 100, 100, 0, now-7200, now-3600, false, 0, "", 0, 0, nil, time.Now().UnixMilli()).
		AddRow(2, "O2", "bob", 1500, 50, 20, 0, now-7200, now-1800, false, 0, "", 0, 0, nil, time.Now().UnixMilli())

	mock.ExpectQuery(`SELECT \* FROM "otc_orders" WHERE expiration_at <= \$1 AND status = \$2 ORDER BY expiration_at ASC LIMIT \$3`).
		WithArgs(now, int8(model.OrderStatusOpen), 100).
		WillReturnRows(rows)

	orders, err := repo.ListExpiredOrders(ctx, now, 100)

	assert.NoError(t, err)
	assert.Len(t, orders, 2)
	assert.Equal(t, "O1", orders[0].OrderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
