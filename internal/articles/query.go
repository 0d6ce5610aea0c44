package articles

import (
	"database/sql"
	"strconv"
	"strings"
)

// Filter selects articles. Viewer drives the fav and following columns and
// may be empty for anonymous callers. A zero Limit means no LIMIT clause.
type Filter struct {
	Viewer      string
	Tag         string
	Feed        bool
	Author      string
	FavoritedBy string
	Slug        string
	IncludeBody bool
	Limit       int
	Offset      int
}

const articleColumns = `
	a.created_at,
	(SELECT COUNT(*) FROM fav_articles f WHERE f.article = a.slug) AS favorites_count,
	u.username,
	u.image,
	EXISTS (SELECT 1 FROM fav_articles f WHERE f.article = a.slug AND f.username = $1) AS fav,
	EXISTS (SELECT 1 FROM follows fo WHERE fo.follower = $1 AND fo.influencer = u.username) AS following,
	COALESCE((SELECT array_agg(t.tag ORDER BY t.tag) FROM article_tags t WHERE t.article = a.slug), '{}') AS tag_list
FROM articles a
JOIN users u ON u.username = a.author`

// buildListQuery composes the listing statement. $1 is always the viewer;
// every other value is bound as a numbered placeholder in the order the
// filters are applied.
func buildListQuery(f Filter) (string, []any) {
	args := []any{sql.NullString{String: f.Viewer, Valid: f.Viewer != ""}}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	var b strings.Builder
	b.WriteString("SELECT\n\ta.slug,\n\ta.title,\n\ta.description,\n")
	if f.IncludeBody {
		b.WriteString("\ta.body,")
	} else {
		b.WriteString("\t'' AS body,")
	}
	b.WriteString(articleColumns)

	var where []string
	if f.Slug != "" {
		where = append(where, "a.slug = "+arg(f.Slug))
	}
	if f.Tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM article_tags t WHERE t.article = a.slug AND t.tag = "+arg(f.Tag)+")")
	}
	if f.Feed && f.Viewer != "" {
		where = append(where, "a.author IN (SELECT fo.influencer FROM follows fo WHERE fo.follower = $1)")
	}
	if f.Author != "" {
		where = append(where, "a.author = "+arg(f.Author))
	}
	if f.FavoritedBy != "" {
		where = append(where, "EXISTS (SELECT 1 FROM fav_articles f WHERE f.article = a.slug AND f.username = "+arg(f.FavoritedBy)+")")
	}
	if len(where) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(where, "\n\tAND "))
	}
	b.WriteString("\nORDER BY a.created_at DESC, a.slug ASC")
	if f.Limit > 0 {
		b.WriteString("\nLIMIT " + arg(f.Limit) + " OFFSET " + arg(f.Offset))
	}
	return b.String(), args
}
