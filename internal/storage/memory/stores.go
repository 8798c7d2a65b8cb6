package memory

import (
	listingsrepo "seva/internal/listings/repository"
	messagesrepo "seva/internal/messages/repository"
	usersrepo "seva/internal/users/repository"
)

var (
	_ listingsrepo.ListingRepository = (*ListingStore)(nil)
	_ messagesrepo.MessageRepository = (*MessageStore)(nil)
	_ usersrepo.UserRepository       = (*UserStore)(nil)
)

// Stores bundles one of each store so a process shares a single dataset.
type Stores struct {
	Listings *ListingStore
	Messages *MessageStore
	Users    *UserStore
}

func NewStores() *Stores {
	return &Stores{
		Listings: NewListingStore(),
		Messages: NewMessageStore(),
		Users:    NewUserStore(),
	}
}
