package postgres

// schema is applied statement by statement; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS asset (
		id                  BIGSERIAL PRIMARY KEY,
		symbol              VARCHAR(50)  NOT NULL UNIQUE,
		name                VARCHAR(255),
		base_price_denom    VARCHAR(20)  NOT NULL,
		base_size_denom     VARCHAR(20)  NOT NULL,
		display_price_denom VARCHAR(10)  NOT NULL,
		display_size_denom  VARCHAR(10)  NOT NULL,
		price_denom_factor  BIGINT       NOT NULL CHECK (price_denom_factor > 0),
		size_denom_factor   BIGINT       NOT NULL CHECK (size_denom_factor > 0),
		created_at          TIMESTAMPTZ  NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_asset_symbol_lower ON asset (lower(symbol))`,

	`CREATE TABLE IF NOT EXISTS order_book_raw (
		id           BIGSERIAL PRIMARY KEY,
		asset_id     BIGINT      NOT NULL REFERENCES asset (id),
		channel_uuid VARCHAR(50),
		received_at  TIMESTAMPTZ NOT NULL,
		raw_data     JSONB       NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_book_raw_asset_time ON order_book_raw (asset_id, received_at DESC)`,

	`CREATE TABLE IF NOT EXISTS order_book (
		id                      BIGSERIAL PRIMARY KEY,
		asset_id                BIGINT      NOT NULL REFERENCES asset (id),
		snapshot_id             BIGINT      NOT NULL,
		channel_uuid            VARCHAR(50),
		received_at             TIMESTAMPTZ NOT NULL,
		side                    VARCHAR(4)  NOT NULL CHECK (side IN ('bid', 'ask')),
		level_rank              INTEGER     NOT NULL CHECK (level_rank > 0),
		price_amount            BIGINT      NOT NULL CHECK (price_amount >= 0),
		quantity_amount         BIGINT      NOT NULL CHECK (quantity_amount >= 0),
		cumulative_amount       BIGINT,
		level_cost_amount       BIGINT      NOT NULL CHECK (level_cost_amount >= 0),
		cumulative_cost_amount  BIGINT,
		price_display           NUMERIC(30, 18) NOT NULL,
		quantity_display        NUMERIC(30, 18) NOT NULL,
		cumulative_display      NUMERIC(30, 18),
		level_cost_display      NUMERIC(30, 18) NOT NULL,
		cumulative_cost_display NUMERIC(30, 18),
		price_denom             VARCHAR(20) NOT NULL,
		quantity_denom          VARCHAR(20) NOT NULL,
		total_orders            INTEGER,
		CHECK (cumulative_amount IS NULL OR cumulative_amount >= quantity_amount)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_order_book_unique_level ON order_book (asset_id, snapshot_id, side, level_rank)`,
	`CREATE INDEX IF NOT EXISTS idx_order_book_asset_time ON order_book (asset_id, received_at)`,
	`CREATE INDEX IF NOT EXISTS idx_order_book_received_at ON order_book (received_at)`,
	`CREATE INDEX IF NOT EXISTS idx_order_book_snapshot_side ON order_book (snapshot_id, side)`,
	`CREATE INDEX IF NOT EXISTS idx_order_book_side_price ON order_book (side, price_amount)`,

	`CREATE TABLE IF NOT EXISTS trade (
		id              BIGSERIAL PRIMARY KEY,
		trade_id        VARCHAR(100) NOT NULL UNIQUE,
		asset_id        BIGINT       NOT NULL REFERENCES asset (id),
		price_amount    BIGINT       NOT NULL CHECK (price_amount >= 0),
		quantity_amount BIGINT       NOT NULL CHECK (quantity_amount >= 0),
		trade_time      TIMESTAMPTZ  NOT NULL,
		channel_uuid    VARCHAR(50),
		raw_data        JSONB,
		created_at      TIMESTAMPTZ  NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trade_asset_time ON trade (asset_id, trade_time)`,
}
