package sqlinline

const QCreateSettingsTable = `--sql 3f0b9c1e-5a4d-4c7e-9d2a-8b6e1f7a2c40
create table if not exists settings (
    key text primary key,
    value text not null,
    updated_at timestamptz not null default now()
);
`

const QSelectSetting = `--sql 9c2d7e41-0b6a-4f3e-a1d5-6e8f2b7c9a13
select value
from settings
where key = $1::text
limit 1;
`

const QUpsertSetting = `--sql 5e7a1b93-2c4d-4e8f-b0a6-1d3c5e7f9b24
insert into settings (key, value, updated_at)
values ($1::text, $2::text, now())
on conflict (key) do update set
    value = excluded.value,
    updated_at = now();
`

const QDeleteSetting = `--sql 7b4e2a16-8d9c-4f1a-9e3b-2c6d8f0a4e57
delete from settings
where key = $1::text;
`
