package storage

const schemaSQL = `
-- One row per check run
CREATE TABLE IF NOT EXISTS check_runs (
    run_id TEXT PRIMARY KEY NOT NULL,
    shop_name TEXT NOT NULL DEFAULT '',
    started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    finished_at DATETIME,
    report_json TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON check_runs(started_at);

-- Rows as they were after a check. Later writes for the same SKU within a
-- run replace earlier ones.
CREATE TABLE IF NOT EXISTS checked_rows (
    run_id TEXT NOT NULL,
    sku TEXT NOT NULL,
    supplier_link TEXT,
    variation TEXT,
    supplier_price REAL NOT NULL DEFAULT 0,
    supplier_shipping REAL NOT NULL DEFAULT 0,
    supplier_qty INTEGER NOT NULL DEFAULT 0,
    supplier_name TEXT,
    supplier_days TEXT,
    part_number TEXT,
    product_dimensions TEXT,
    color TEXT,
    power_source TEXT,
    voltage TEXT,
    wattage TEXT,
    included_components TEXT,
    title TEXT,
    extra_json TEXT,
    checked_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (run_id, sku),
    FOREIGN KEY (run_id) REFERENCES check_runs(run_id)
);

CREATE INDEX IF NOT EXISTS idx_rows_sku ON checked_rows(sku);
CREATE INDEX IF NOT EXISTS idx_rows_supplier_name ON checked_rows(supplier_name);

-- Business exceptions worth an operator's attention
CREATE TABLE IF NOT EXISTS check_errors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    sku TEXT NOT NULL,
    error_type TEXT NOT NULL,
    occurred_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (run_id) REFERENCES check_runs(run_id)
);

CREATE INDEX IF NOT EXISTS idx_errors_run ON check_errors(run_id);
CREATE INDEX IF NOT EXISTS idx_errors_type ON check_errors(error_type);

-- Out of stock rows of the latest runs
CREATE VIEW IF NOT EXISTS out_of_stock_rows AS
SELECT run_id, sku, supplier_link, supplier_name, checked_at
FROM checked_rows
WHERE supplier_qty < 1;

-- Store meta table stores metadata as key-value pairs
CREATE TABLE IF NOT EXISTS store_meta (
    key TEXT PRIMARY KEY NOT NULL,
    value TEXT NOT NULL
);
`
