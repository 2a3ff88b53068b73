package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/chfctl/internal/catalog"
	"github.com/bnema/chfctl/internal/characters"
	"github.com/bnema/chfctl/internal/installer"
	"github.com/bnema/chfctl/internal/ui/styles"
)

type browserState int

const (
	browserViewList browserState = iota
	browserViewDetails
	browserViewBusy
)

// characterItem implements list.Item for catalog entries
type characterItem struct {
	c characters.Character
}

func (i characterItem) Title() string {
	var badges []string
	if i.c.IsNew() {
		badges = append(badges, styles.FormatNewBadge())
	}
	if i.c.IsInstalled() {
		badges = append(badges, styles.FormatInstalledBadge())
	}
	if len(badges) > 0 {
		return i.c.Name + "  " + strings.Join(badges, " ")
	}
	return i.c.Name
}

func (i characterItem) Description() string {
	var parts []string
	if i.c.Author != "" {
		parts = append(parts, "by "+i.c.Author)
	}
	if d := styles.FormatDownloads(i.c.Downloads); d != "" {
		parts = append(parts, d)
	}
	if l := styles.FormatLikes(i.c.Likes); l != "" {
		parts = append(parts, l)
	}
	if len(i.c.Tags) > 0 {
		parts = append(parts, styles.FormatTags(i.c.Tags))
	}
	return strings.Join(parts, " | ")
}

func (i characterItem) FilterValue() string {
	return i.c.Name + " " + i.c.Author + " " + strings.Join(i.c.Tags, " ")
}

// KeyMap defines the browser shortcuts
type KeyMap struct {
	Install   key.Binding
	Uninstall key.Binding
	Details   key.Binding
	Order     key.Binding
	Refresh   key.Binding
	Quit      key.Binding
	Back      key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Install:   key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "install")),
		Uninstall: key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "uninstall")),
		Details:   key.NewBinding(key.WithKeys("d", "enter"), key.WithHelp("d", "details")),
		Order:     key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "order")),
		Refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "sync")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	}
}

// BrowserModel browses the remote catalog and installs from it
type BrowserModel struct {
	ctx       context.Context
	cache     *catalog.Cache
	client    *catalog.Client
	repo      *characters.Repository
	installer *installer.Installer

	list    list.Model
	spinner spinner.Model
	keys    KeyMap

	state         browserState
	width, height int

	entries  []characters.Character
	selected *characters.Character
	info     catalog.Info

	loading   bool
	refresh   bool
	statusMsg string
	errorMsg  string
	busyMsg   string

	order characters.SortOrder
}

// NewBrowserModel creates the catalog browser. refresh forces a full sync
// instead of serving the cache.
func NewBrowserModel(ctx context.Context, cache *catalog.Cache, client *catalog.Client, repo *characters.Repository, inst *installer.Installer, refresh bool) BrowserModel {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(styles.Primary).
		BorderForeground(styles.Primary)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(styles.Muted).
		BorderForeground(styles.Primary)

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Character Catalog"
	l.Styles.Title = styles.Title
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Spinner

	return BrowserModel{
		ctx:       ctx,
		cache:     cache,
		client:    client,
		repo:      repo,
		installer: inst,
		list:      l,
		spinner:   s,
		keys:      DefaultKeyMap(),
		state:     browserViewList,
		loading:   true,
		refresh:   refresh,
	}
}

// Init initializes the model
func (m BrowserModel) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), m.spinner.Tick)
}

type catalogLoadedMsg struct {
	entries []characters.Character
	info    catalog.Info
	err     error
}

type operationDoneMsg struct {
	message string
	err     error
}

func (m BrowserModel) loadCmd() tea.Cmd {
	force := m.refresh
	order := m.order
	return func() tea.Msg {
		entries, err := m.cache.Get(m.ctx, m.client, force, nil)
		if err != nil {
			return catalogLoadedMsg{err: err}
		}
		if installed, err := m.repo.List(); err == nil {
			characters.MarkInstalled(entries, installed)
		}
		characters.Sort(entries, order)
		return catalogLoadedMsg{entries: entries, info: m.cache.Info()}
	}
}

func (m BrowserModel) installCmd(c characters.Character) tea.Cmd {
	return func() tea.Msg {
		if err := m.installer.Install(m.ctx, &c); err != nil {
			return operationDoneMsg{err: fmt.Errorf("install failed: %w", err)}
		}
		return operationDoneMsg{message: fmt.Sprintf("Installed %s as %s", c.Name, c.LocalFilename)}
	}
}

func (m BrowserModel) uninstallCmd(c characters.Character) tea.Cmd {
	return func() tea.Msg {
		removed, err := m.installer.Uninstall(&c, true)
		if err != nil {
			return operationDoneMsg{err: fmt.Errorf("uninstall failed: %w", err)}
		}
		if !removed {
			return operationDoneMsg{message: c.Name + " was not found on disk"}
		}
		return operationDoneMsg{message: fmt.Sprintf("Uninstalled %s (snapshot kept)", c.Name)}
	}
}

func (m *BrowserModel) setItems() {
	items := make([]list.Item, len(m.entries))
	for i, c := range m.entries {
		items[i] = characterItem{c: c}
	}
	m.list.SetItems(items)
}

// Update handles messages
func (m BrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		h, v := styles.App.GetFrameSize()
		// status bar footer plus an optional stale-cache line
		m.list.SetSize(msg.Width-h, msg.Height-v-2)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) && m.list.FilterState() != list.Filtering {
			if m.state == browserViewList {
				return m, tea.Quit
			}
			m.state = browserViewList
			return m, nil
		}
		if key.Matches(msg, m.keys.Back) && m.state == browserViewDetails {
			m.state = browserViewList
			m.selected = nil
			return m, nil
		}
		if !m.loading {
			switch m.state {
			case browserViewList:
				return m.updateList(msg)
			case browserViewDetails:
				return m.updateDetails(msg)
			}
		}

	case catalogLoadedMsg:
		m.loading = false
		m.refresh = false
		if msg.err != nil {
			m.errorMsg = msg.err.Error()
			return m, nil
		}
		m.entries = msg.entries
		m.info = msg.info
		m.setItems()

		m.list.Title = fmt.Sprintf("Character Catalog (%d available", len(msg.entries))
		if msg.info.New > 0 {
			m.list.Title += fmt.Sprintf(", %d new", msg.info.New)
		}
		m.list.Title += ")"
		return m, nil

	case operationDoneMsg:
		m.state = browserViewList
		m.loading = false
		if msg.err != nil {
			m.errorMsg = msg.err.Error()
			return m, nil
		}
		m.statusMsg = msg.message
		m.loading = true
		return m, m.loadCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	if !m.loading {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m BrowserModel) startInstall(c characters.Character) (tea.Model, tea.Cmd) {
	if c.IsInstalled() {
		m.statusMsg = c.Name + " is already installed"
		return m, nil
	}
	m.state = browserViewBusy
	m.loading = true
	m.busyMsg = "Installing " + c.Name + "..."
	m.errorMsg, m.statusMsg = "", ""
	return m, tea.Batch(m.installCmd(c), m.spinner.Tick)
}

func (m BrowserModel) startUninstall(c characters.Character) (tea.Model, tea.Cmd) {
	if !c.IsInstalled() {
		m.statusMsg = c.Name + " is not installed"
		return m, nil
	}
	m.state = browserViewBusy
	m.loading = true
	m.busyMsg = "Uninstalling " + c.Name + "..."
	m.errorMsg, m.statusMsg = "", ""
	return m, tea.Batch(m.uninstallCmd(c), m.spinner.Tick)
}

func (m BrowserModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Install):
		if item, ok := m.list.SelectedItem().(characterItem); ok {
			return m.startInstall(item.c)
		}
		return m, nil

	case key.Matches(msg, m.keys.Uninstall):
		if item, ok := m.list.SelectedItem().(characterItem); ok {
			return m.startUninstall(item.c)
		}
		return m, nil

	case key.Matches(msg, m.keys.Details):
		if item, ok := m.list.SelectedItem().(characterItem); ok {
			c := item.c
			m.selected = &c
			m.state = browserViewDetails
		}
		return m, nil

	case key.Matches(msg, m.keys.Order):
		m.order = m.order.Next()
		characters.Sort(m.entries, m.order)
		m.setItems()
		m.statusMsg = "Sorted by " + m.order.String()
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		m.refresh = true
		m.statusMsg, m.errorMsg = "", ""
		return m, tea.Batch(m.loadCmd(), m.spinner.Tick)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m BrowserModel) updateDetails(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.selected == nil {
		m.state = browserViewList
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Details):
		m.state = browserViewList
		m.selected = nil
		return m, nil
	case key.Matches(msg, m.keys.Install):
		return m.startInstall(*m.selected)
	case key.Matches(msg, m.keys.Uninstall):
		return m.startUninstall(*m.selected)
	}
	return m, nil
}

// View renders the UI
func (m BrowserModel) View() string {
	var content string
	switch m.state {
	case browserViewDetails:
		content = m.viewDetails()
	case browserViewBusy:
		content = m.spinner.View() + " " + m.busyMsg
	default:
		content = m.viewList()
	}
	return styles.App.Render(content)
}

func (m BrowserModel) renderFooter() string {
	left := m.order.String()
	if m.errorMsg != "" {
		left += " | " + m.errorMsg
	} else if m.statusMsg != "" {
		left += " | " + m.statusMsg
	}
	right := "/filter i:inst u:rem d:info o:sort r:sync q:quit"

	// App padding is 2 on each side
	availableWidth := m.width - 4

	leftRendered := styles.StatusBarLeft.Render(" " + left + " ")
	rightRendered := styles.StatusBarRight.Render(" " + right + " ")

	gap := availableWidth - lipgloss.Width(leftRendered) - lipgloss.Width(rightRendered)
	if gap < 0 {
		gap = 0
	}
	middle := lipgloss.NewStyle().Background(styles.StatusBarBg).Render(strings.Repeat(" ", gap))

	return lipgloss.JoinHorizontal(lipgloss.Bottom, leftRendered, middle, rightRendered)
}

func (m BrowserModel) viewList() string {
	var s strings.Builder

	if m.loading {
		msg := "Loading catalog..."
		if m.refresh {
			msg = "Syncing catalog (this can take a while)..."
		}
		s.WriteString(m.spinner.View() + " " + msg)
		return s.String()
	}

	s.WriteString(m.list.View())

	if m.info.IsStale && m.info.HasCache {
		if days := int(m.info.Age.Hours() / 24); days > 0 {
			s.WriteString("\n" + styles.FormatWarning(fmt.Sprintf("Cache is %d day(s) old. Press 'r' to sync.", days)))
		}
	}

	s.WriteString("\n" + m.renderFooter())
	return s.String()
}

func (m BrowserModel) viewDetails() string {
	if m.selected == nil {
		return "No character selected"
	}
	c := m.selected

	var s strings.Builder
	s.WriteString(styles.Title.Render("Character Details") + "\n\n")

	nameLine := styles.CharacterName.Render(c.Name)
	if c.IsNew() {
		nameLine += "  " + styles.FormatNewBadge()
	}
	if c.IsInstalled() {
		nameLine += "  " + styles.FormatInstalledBadge()
	}
	s.WriteString(nameLine + "\n\n")

	fmt.Fprintf(&s, "Author:      %s\n", c.Author)
	fmt.Fprintf(&s, "Downloads:   %d\n", c.Downloads)
	fmt.Fprintf(&s, "Likes:       %d\n", c.Likes)
	if len(c.Tags) > 0 {
		fmt.Fprintf(&s, "Tags:        %s\n", styles.FormatTags(c.Tags))
	}
	if created := c.Created(); !created.IsZero() {
		fmt.Fprintf(&s, "Published:   %s\n", created.Format("2006-01-02"))
	}
	if c.URLDetail != "" {
		fmt.Fprintf(&s, "Page:        %s\n", c.URLDetail)
	}
	if c.LocalFilename != "" {
		fmt.Fprintf(&s, "File:        %s\n", c.LocalFilename)
	}
	if c.Description != "" {
		fmt.Fprintf(&s, "\n%s\n", c.Description)
	}

	s.WriteString("\n")
	if c.IsInstalled() {
		s.WriteString(styles.Help.Render("u:uninstall  esc/d:back  q:quit"))
	} else {
		s.WriteString(styles.Help.Render("i:install  esc/d:back  q:quit"))
	}
	return s.String()
}
