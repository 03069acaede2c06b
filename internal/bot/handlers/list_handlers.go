package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"

	"github.com/edgard/herald/internal/store"
)

const (
	todoSyntax   = "/todo <text> [!low|!medium|!high]"
	shopSyntax   = "/shop <item> [xN]"
	doneSyntax   = "/done <todo|shopping> <id>"
	deleteSyntax = "/delete <message|reminder|todo|shopping> <id>"
)

// NewTodoHandler returns a handler for /todo.
func NewTodoHandler(deps HandlerDeps) bot.HandlerFunc {
	return command{deps, "todo", todoHandler{deps}.run}.Handle
}

type todoHandler struct {
	deps HandlerDeps
}

func (h todoHandler) run(_ context.Context, args string) string {
	text, priority := args, ""
	if i := strings.LastIndex(args, " !"); i >= 0 {
		text, priority = strings.TrimSpace(args[:i]), strings.TrimSpace(args[i+2:])
	}
	switch strings.ToLower(priority) {
	case "", "low", "medium", "high":
	default:
		return usage(h.deps, todoSyntax)
	}
	if text == "" {
		return usage(h.deps, todoSyntax)
	}

	todo, err := h.deps.Assistant.AddTodo(text, priority)
	if err != nil {
		return userError(h.deps, err)
	}
	return fmt.Sprintf("Added to-do #%d: %s (%s priority)", todo.ID, todo.Text, todo.Priority)
}

// NewShopHandler returns a handler for /shop.
func NewShopHandler(deps HandlerDeps) bot.HandlerFunc {
	return command{deps, "shop", shopHandler{deps}.run}.Handle
}

type shopHandler struct {
	deps HandlerDeps
}

func (h shopHandler) run(_ context.Context, args string) string {
	text, quantity := args, ""
	if i := strings.LastIndex(args, " "); i >= 0 {
		last := args[i+1:]
		if len(last) > 1 && (last[0] == 'x' || last[0] == 'X') && strings.Trim(last[1:], "0123456789") == "" {
			text, quantity = strings.TrimSpace(args[:i]), last[1:]
		}
	}
	if strings.TrimSpace(text) == "" {
		return usage(h.deps, shopSyntax)
	}

	item, err := h.deps.Assistant.AddShopping(text, quantity)
	if err != nil {
		return userError(h.deps, err)
	}
	return fmt.Sprintf("Added to shopping list #%d: %s x%s", item.ID, item.Text, item.Quantity)
}

// NewDoneHandler returns a handler for /done, which toggles a list item.
func NewDoneHandler(deps HandlerDeps) bot.HandlerFunc {
	return command{deps, "done", doneHandler{deps}.run}.Handle
}

type doneHandler struct {
	deps HandlerDeps
}

func (h doneHandler) run(_ context.Context, args string) string {
	kind, rest := cutField(args)
	id, err := parseID(rest)
	if err != nil {
		return usage(h.deps, doneSyntax)
	}

	switch strings.ToLower(kind) {
	case "todo", "todos":
		t, err := h.deps.Assistant.ToggleTodo(id)
		if err != nil {
			return userError(h.deps, err)
		}
		return fmt.Sprintf("To-do #%d is now %s", t.ID, t.Status)
	case "shopping", "shop":
		s, err := h.deps.Assistant.ToggleShopping(id)
		if err != nil {
			return userError(h.deps, err)
		}
		return fmt.Sprintf("Shopping item #%d is now %s", s.ID, s.Status)
	default:
		return usage(h.deps, doneSyntax)
	}
}

// NewDeleteHandler returns a handler for /delete. Deleting a scheduled item
// before it is due cancels it.
func NewDeleteHandler(deps HandlerDeps) bot.HandlerFunc {
	return command{deps, "delete", deleteHandler{deps}.run}.Handle
}

type deleteHandler struct {
	deps HandlerDeps
}

func (h deleteHandler) run(_ context.Context, args string) string {
	kind, rest := cutField(args)
	id, err := parseID(rest)
	if kind == "" || err != nil {
		return usage(h.deps, deleteSyntax)
	}
	if err := h.deps.Assistant.Delete(kind, id); err != nil {
		return userError(h.deps, err)
	}
	return fmt.Sprintf("Deleted %s #%d", strings.ToLower(kind), id)
}

// NewListHandler returns a handler for /list.
func NewListHandler(deps HandlerDeps) bot.HandlerFunc {
	return command{deps, "list", listHandler{deps}.run}.Handle
}

type listHandler struct {
	deps HandlerDeps
}

func (h listHandler) run(_ context.Context, args string) string {
	section := strings.ToLower(strings.TrimSpace(args))
	var b strings.Builder

	show := func(name string) bool {
		return section == "" || strings.HasPrefix(name, section)
	}

	if show("messages") {
		h.writeScheduled(&b, "Scheduled messages", h.deps.Assistant.Messages())
	}
	if show("reminders") {
		h.writeScheduled(&b, "Reminders", h.deps.Assistant.Reminders())
	}
	if show("todo") {
		b.WriteString("To-do:\n")
		todos := h.deps.Assistant.Todos()
		if len(todos) == 0 {
			b.WriteString("  (empty)\n")
		}
		for _, t := range todos {
			fmt.Fprintf(&b, "  #%d [%s] %s (%s)\n", t.ID, t.Status, t.Text, t.Priority)
		}
	}
	if show("shopping") {
		b.WriteString("Shopping:\n")
		items := h.deps.Assistant.ShoppingList()
		if len(items) == 0 {
			b.WriteString("  (empty)\n")
		}
		for _, s := range items {
			fmt.Fprintf(&b, "  #%d [%s] %s x%s\n", s.ID, s.Status, s.Text, s.Quantity)
		}
	}
	if show("contacts") {
		writeContacts(&b, h.deps.Assistant.Contacts())
	}

	if b.Len() == 0 {
		return usage(h.deps, "/list [messages|reminders|todo|shopping|contacts]")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (h listHandler) writeScheduled(b *strings.Builder, title string, items []store.ScheduledItem) {
	b.WriteString(title + ":\n")
	if len(items) == 0 {
		b.WriteString("  (empty)\n")
	}
	for _, it := range items {
		b.WriteString("  " + h.deps.Assistant.Describe(it) + "\n")
	}
}
