package sqlinline

const QInsertAnalysis = `--sql 7c1f4a0e-2d5b-4b6f-9a24-3e8f1c55d9b2
insert into analyses(
  id,
  user_id,
  image_hash,
  mode,
  language,
  response_text,
  confidence,
  model_used,
  cached,
  country,
  created_at
)
values (
  $1::uuid,
  nullif($2::text, ''),
  $3::text,
  $4::text,
  $5::text,
  $6::text,
  $7::text,
  $8::text,
  $9::boolean,
  nullif($10::text, ''),
  now()
)
returning created_at;
`

const QListAnalysesByUser = `--sql 91b5de37-6a84-4f0c-bf1d-2a9e07c4e815
select
  id::text,
  coalesce(user_id, ''),
  image_hash,
  mode,
  language,
  response_text,
  confidence,
  model_used,
  cached,
  coalesce(country, ''),
  created_at
from analyses
where user_id = $1::text
order by created_at desc
limit $2::int;
`

const QGetAnalysisByID = `--sql c3a9f7d1-08e2-47bb-94c6-5f1d83ab60e4
select
  id::text,
  coalesce(user_id, ''),
  image_hash,
  mode,
  language,
  response_text,
  confidence,
  model_used,
  cached,
  coalesce(country, ''),
  created_at
from analyses
where id = $1::uuid
limit 1;
`
