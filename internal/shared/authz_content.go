package shared

// Tourism content permissions: destinations, leisure sports, festivals.
const (
	PermDestinationsRead    = "destinations.read"
	PermDestinationsWrite   = "destinations.write"
	PermDestinationsDelete  = "destinations.delete"
	PermDestinationsApprove = "destinations.approve"

	PermLeisureRead   = "leisure_sports.read"
	PermLeisureWrite  = "leisure_sports.write"
	PermLeisureDelete = "leisure_sports.delete"

	PermFestivalsRead   = "festivals.read"
	PermFestivalsWrite  = "festivals.write"
	PermFestivalsDelete = "festivals.delete"
)

// ContentScopes lists all tourism content permissions.
func ContentScopes() []string {
	return []string{
		PermDestinationsRead,
		PermDestinationsWrite,
		PermDestinationsDelete,
		PermDestinationsApprove,
		PermLeisureRead,
		PermLeisureWrite,
		PermLeisureDelete,
		PermFestivalsRead,
		PermFestivalsWrite,
		PermFestivalsDelete,
	}
}
