package sqlinline

const QCreateSchemaResults = `--sql 73267184-817e-46b4-bebd-9a40bf1e4b66
create table if not exists schema_results (
  id         bigserial primary key,
  query_time timestamptz not null default now(),
  input      text not null,
  output     text not null
);
`

const QInsertSchemaResult = `--sql 4a803ff8-84b1-4b86-885f-95062762f72a
insert into schema_results (input, output)
values ($1, $2)
returning id;
`

const QSelectSchemaResults = `--sql c34149a0-f503-4c82-b97e-ab97ebce556d
select id, query_time, input, output
from schema_results
order by query_time desc, id desc;
`

const QSelectSchemaResultByID = `--sql b1c58496-91f1-43c5-87d9-313dfa9caf8c
select id, query_time, input, output
from schema_results
where id = $1;
`
