package tmdb

// genreNames maps TMDB genre ids to the French labels shown in the admin form.
var genreNames = map[int]string{
	28:    "Action",
	12:    "Aventure",
	16:    "Animation",
	35:    "Comédie",
	80:    "Crime",
	99:    "Documentaire",
	18:    "Drame",
	10751: "Familial",
	14:    "Fantastique",
	36:    "Histoire",
	27:    "Horreur",
	10402: "Musique",
	9648:  "Mystère",
	10749: "Romance",
	878:   "Science-Fiction",
	10770: "Téléfilm",
	53:    "Thriller",
	10752: "Guerre",
	37:    "Western",
}

// GenreName returns the label for a TMDB genre id.
func GenreName(id int) (string, bool) {
	name, ok := genreNames[id]
	return name, ok
}
