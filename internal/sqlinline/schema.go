// Package sqlinline carries the SQL statements defining the service schema.
// The leading marker line is a SQL comment, so statements execute as-is; the
// marker identifies the statement in logs and reviews.
package sqlinline

const QCreateJobsTable = `--sql b6df2240-8c7e-4656-8bcd-468ccb554454
create table if not exists jobs (
    id uuid primary key,
    request_id text not null unique,
    owner_id text not null,
    model_id text not null,
    kind text not null,
    status text not null default 'pending',
    input jsonb,
    result jsonb,
    error_message text not null default '',
    created_at timestamptz not null default now(),
    completed_at timestamptz
);
`

const QCreateJobsOwnerIndex = `--sql 6d2a8c11-a6a6-4621-aa4e-33d7a307b176
create index if not exists jobs_owner_created_at_idx
    on jobs (owner_id, created_at desc);
`

const QCreateJobsPendingIndex = `--sql 765fd011-f7e1-43c1-bddb-3681b2295c9f
create index if not exists jobs_pending_created_at_idx
    on jobs (created_at)
    where status = 'pending';
`

const QCreateCreditTransactionsTable = `--sql 2d6ba31c-817b-427b-9049-0edae8d28fa1
create table if not exists credit_transactions (
    id uuid primary key,
    owner_id text not null,
    amount bigint not null,
    reason text not null,
    request_id text not null default '',
    created_at timestamptz not null default now()
);
`

const QCreateCreditTransactionsOwnerIndex = `--sql 027d8ed7-bd5e-4731-bfaa-ce5a4cc8cee2
create index if not exists credit_transactions_owner_idx
    on credit_transactions (owner_id);
`
