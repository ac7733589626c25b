package domain

// DefaultGenre is the coercion target for any genre outside the approved
// set. Invalid genres are never rejected, only coerced.
const DefaultGenre = "Technology"

// ApprovedGenres is the closed taxonomy assigned to classified
// newsletters. The order here is the order genres are listed in prompts.
var ApprovedGenres = []string{
	"Technology",
	"Business",
	"Philosophy",
	"Culture",
	"Science",
	"Health",
	"Productivity",
	"Writing & Creativity",
	"Personal Growth",
	"Finance",
	"Politics",
	"Education",
	"Lifestyle",
	"Humor & Entertainment",
	"Spirituality",
}

// GenreSet builds a membership set from a genre list.
func GenreSet(genres []string) map[string]struct{} {
	set := make(map[string]struct{}, len(genres))
	for _, g := range genres {
		set[g] = struct{}{}
	}
	return set
}

// CoerceGenre returns the genre unchanged when it belongs to the
// approved set, otherwise the fallback.
func CoerceGenre(genre string, approved map[string]struct{}, fallback string) string {
	if _, ok := approved[genre]; ok {
		return genre
	}
	return fallback
}
