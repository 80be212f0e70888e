package stash

import "github.com/John-Robertt/stash2nfo/internal/domain"

// 查询字段使用 GraphQL 别名，让 API 响应直接贴合记录文件的键名
// （height_cm => height，alias_list => aliases）。

const pingQuery = `query { version { version } }`

const findSceneQuery = `query FindScene($id: ID!) {
  findScene(id: $id) {
    id
    title
    details
    date
    rating100
    url
    studio { name }
    tags { name }
    performers { name }
    files { path duration }
  }
}`

const findPerformerQuery = `query FindPerformer($id: ID!) {
  findPerformer(id: $id) {
    id
    name
    gender
    birthdate
    ethnicity
    country
    eye_color
    height: height_cm
    measurements
    career_length
    tattoos
    piercings
    aliases: alias_list
    url
    twitter
    instagram
  }
}`

const findGalleryQuery = `query FindGallery($id: ID!) {
  findGallery(id: $id) {
    id
    title
    url
    date
    details
    rating100
    studio { name }
    performers { name }
    tags { name }
    scenes { id title }
    folder { path }
  }
}`

const findScenesQuery = `query FindScenes($filter: FindFilterType, $scene_filter: SceneFilterType) {
  findScenes(filter: $filter, scene_filter: $scene_filter) {
    scenes {
      id
      title
      date
      studio { name }
      performers { name }
      files { path }
    }
  }
}`

// byID 描述一种类型的按 ID 查询：query 文本与响应中的根字段名。
type byID struct {
	query string
	field string
}

var byIDQueries = map[domain.Kind]byID{
	domain.KindScene:     {findSceneQuery, "findScene"},
	domain.KindPerformer: {findPerformerQuery, "findPerformer"},
	domain.KindGallery:   {findGalleryQuery, "findGallery"},
}
