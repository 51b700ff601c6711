package sqlinline

const QSelectIntegrationToken = `--sql 4be2c6a9-91d0-4f3a-8c57-6ab2e94d10f8
select token
from integration_tokens
where provider = $1::text
limit 1;
`

const QUpsertIntegrationToken = `--sql a7d83f12-5c46-4e9b-b0d1-89e4c2f76a35
with incoming as (
    select
        $1::text as provider,
        $2::text as token,
        coalesce($3::jsonb, '{}'::jsonb) as properties
)
insert into integration_tokens (id, provider, token, properties, created_at, updated_at)
values (gen_random_uuid(), (select provider from incoming), (select token from incoming), (select properties from incoming), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`

const QDeleteIntegrationToken = `--sql 2f91c47b-3e68-4d05-a2c9-7b50d81e64a3
delete from integration_tokens
where provider = $1::text;
`
