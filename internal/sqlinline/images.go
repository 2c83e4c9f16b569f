package sqlinline

const QEnsureImagesSchema = `--sql afaf4807-b461-4fe4-b374-f843648e9dbd
create table if not exists images (
  id              uuid primary key,
  character_id    text not null,
  prompt          text not null,
  negative_prompt text not null,
  nsfw_level      smallint not null check (nsfw_level between 0 and 3),
  fingerprint     text not null,
  score           double precision not null,
  provider        text not null,
  storage_key     text not null,
  mime            text not null,
  bytes           bigint not null,
  width           int not null,
  height          int not null,
  created_at      timestamptz not null default now()
);
create index if not exists images_character_created_idx on images (character_id, created_at desc);
`

const QInsertImage = `--sql 3f61a1ae-91c6-4ab5-a7a3-d60b7a431789
insert into images (
  id, character_id, prompt, negative_prompt, nsfw_level, fingerprint, score,
  provider, storage_key, mime, bytes, width, height, created_at
)
values ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14);
`

const QGetImage = `--sql 174f2b7f-eb07-41ec-8587-60e2135d6a93
select
  id::text, character_id, prompt, negative_prompt, nsfw_level, fingerprint, score,
  provider, storage_key, mime, bytes, width, height, created_at
from images
where id = $1::uuid;
`

const QListImagesByCharacter = `--sql 3cffcb2e-670f-44cd-8d56-5f225b1d2ecf
select
  id::text, character_id, prompt, negative_prompt, nsfw_level, fingerprint, score,
  provider, storage_key, mime, bytes, width, height, created_at
from images
where character_id = $1
order by created_at desc, id desc
limit $2 offset $3;
`

const QDeleteImage = `--sql 5c354540-1b38-4b27-84e0-b98c1070a276
delete from images
where id = $1::uuid;
`
