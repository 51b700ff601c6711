package sqlinline

const QUsageDaily = `--sql d5f20c84-1a7e-4b63-9d08-c42b6e93f571
select
  (created_at at time zone 'UTC')::date as day,
  count(*)                              as total,
  count(*) filter (where cached)        as cached,
  count(distinct user_id)               as users
from analyses
where created_at >= now() - ($1::int * interval '1 day')
group by day
order by day desc;
`

const QUsageTopUsersToday = `--sql 3b7a914f-6c20-4e85-a1db-09f5c73e82d6
select
  coalesce(user_id, '(anonymous)') as user_id,
  count(*)                         as total
from analyses
where (created_at at time zone 'UTC')::date = (now() at time zone 'UTC')::date
group by user_id
order by total desc, user_id
limit $1::int;
`

const QPruneAnalyses = `--sql 8e64d0b2-47f9-4c31-b58a-d21c9a06ef47
delete from analyses
where created_at < now() - ($1::int * interval '1 day');
`
