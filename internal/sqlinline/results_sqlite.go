package sqlinline

// SQLite dialect of the schema_results queries. Timestamps are written by the
// application in a fixed-width UTC layout so text order is time order.

const QSQLiteCreateSchemaResults = `--sql 5e6a5a22-2030-43ac-a18c-ddbfbcc2c3eb
create table if not exists schema_results (
  id         integer primary key autoincrement,
  query_time timestamp default current_timestamp,
  input      text not null,
  output     text not null
);
`

const QSQLiteInsertSchemaResult = `--sql 9e0f2b7b-0e7b-4c7c-9994-79dd7dead16e
insert into schema_results (query_time, input, output)
values (?, ?, ?);
`

const QSQLiteSelectSchemaResults = `--sql 33d25698-7820-47f8-8ed8-09429c3a7264
select id, query_time, input, output
from schema_results
order by query_time desc, id desc;
`

const QSQLiteSelectSchemaResultByID = `--sql 8fec48a2-f426-46da-8a7f-a419aa5af947
select id, query_time, input, output
from schema_results
where id = ?;
`
