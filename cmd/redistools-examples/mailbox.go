package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-i2p/redistools/lib/collections"
	"github.com/go-i2p/redistools/lib/store"
)

// Conversation is the set of message ids in a thread, scored by send time
// in milliseconds.
type Conversation struct {
	*collections.SortedSet
	ID int64
}

func NewConversation(r collections.Runner, id int64) *Conversation {
	return &Conversation{
		SortedSet: collections.NewSortedSet(r, "conv:"+strconv.FormatInt(id, 10)),
		ID:        id,
	}
}

func (c *Conversation) AddMessage(ctx context.Context, msgID int64, at time.Time) error {
	return c.Add(ctx, collections.Member{
		Element: strconv.FormatInt(msgID, 10),
		Score:   float64(at.UnixMilli()),
	})
}

// Folder orders a profile's conversations by last activity.
type Folder struct {
	*collections.SortedSet
	runner    collections.Runner
	Name      string
	ProfileID int64
}

func NewFolder(r collections.Runner, name string, profileID int64) *Folder {
	return &Folder{
		SortedSet: collections.NewSortedSet(r, strconv.FormatInt(profileID, 10)+":"+name),
		runner:    r,
		Name:      name,
		ProfileID: profileID,
	}
}

func (f *Folder) AddConversation(ctx context.Context, c *Conversation, at time.Time) error {
	return f.Add(ctx, collections.Member{
		Element: strconv.FormatInt(c.ID, 10),
		Score:   float64(at.UnixMilli()),
	})
}

// Conversation returns the conversation an element of the folder refers to.
func (f *Folder) Conversation(element string) (*Conversation, error) {
	id, err := strconv.ParseInt(element, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("conversation id %q: %w", element, err)
	}
	return NewConversation(f.runner, id), nil
}

// Mailbox is a profile's inbox and sentbox.
type Mailbox struct {
	ProfileID int64
	Inbox     *Folder
	Sentbox   *Folder
}

func NewMailbox(r collections.Runner, profileID int64) *Mailbox {
	return &Mailbox{
		ProfileID: profileID,
		Inbox:     NewFolder(r, "inbox", profileID),
		Sentbox:   NewFolder(r, "sentbox", profileID),
	}
}

const demoProfile = 1501571

// runMailboxDemo seeds an inbox with two conversations and prints it.
func runMailboxDemo(ctx context.Context, client *store.Client, out io.Writer) error {
	mb := NewMailbox(client, demoProfile)

	base := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	for i, convID := range []int64{7001, 7002} {
		conv := NewConversation(client, convID)
		var last time.Time
		for j := 0; j < 3; j++ {
			last = base.Add(time.Duration(i*24+j) * time.Hour)
			if err := conv.AddMessage(ctx, convID*10+int64(j), last); err != nil {
				return err
			}
		}
		if err := mb.Inbox.AddConversation(ctx, conv, last); err != nil {
			return err
		}
	}

	return printFolder(ctx, mb.Inbox, out)
}

func printFolder(ctx context.Context, f *Folder, out io.Writer) error {
	fmt.Fprintf(out, "%s: Conversations {\n", f.Name)

	var walkErr error
	err := f.ForEach(ctx, func(m collections.Member) bool {
		conv, err := f.Conversation(m.Element)
		if err != nil {
			walkErr = err
			return false
		}
		fmt.Fprintf(out, "  Conversation: [id=%s, time=%s] [messages=",
			m.Element, time.UnixMilli(int64(m.Score)).UTC().Format(time.RFC3339))
		walkErr = conv.ForEach(ctx, func(msg collections.Member) bool {
			fmt.Fprintf(out, "(%s,%s) ", msg.Element,
				time.UnixMilli(int64(msg.Score)).UTC().Format("2006/01/02"))
			return true
		})
		fmt.Fprintln(out, "]")
		return walkErr == nil
	})
	if err != nil {
		return err
	}
	if walkErr != nil {
		return walkErr
	}
	fmt.Fprintln(out, "}")
	return nil
}
