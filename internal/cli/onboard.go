package cli

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/joebot/relaybot/internal/config"
)

// --- onboard selection model ---

type onboardChoice int

const (
	choiceUpgrade onboardChoice = iota
	choiceOverwrite
	choiceSkip
)

type onboardModel struct {
	choices []string
	cursor  int
	chosen  bool
	choice  onboardChoice
}

func (m onboardModel) Init() tea.Cmd { return nil }

func (m onboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.choice = choiceSkip
			m.chosen = true
			return m, tea.Quit
		case tea.KeyUp, tea.KeyShiftTab:
			if m.cursor > 0 {
				m.cursor--
			}
		case tea.KeyDown, tea.KeyTab:
			if m.cursor < len(m.choices)-1 {
				m.cursor++
			}
		case tea.KeyEnter:
			m.choice = onboardChoice(m.cursor)
			m.chosen = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m onboardModel) View() string {
	if m.chosen {
		return ""
	}

	s := "\n"
	s += fmt.Sprintf("  Config already exists at %s\n\n", DimStyle.Render(config.ConfigPath()))

	for i, choice := range m.choices {
		cursor := "  "
		if i == m.cursor {
			cursor = BotLabel.Render("❯ ")
		}
		s += "  " + cursor + choice + "\n"
	}

	s += "\n" + DimStyle.Render("  ↑/↓ navigate · enter select · ctrl+c cancel") + "\n"
	return s
}

// RunOnboard runs the onboard wizard.
func RunOnboard() {
	cfgPath := config.ConfigPath()
	var cfg *config.Config

	fmt.Println()
	fmt.Println(TitleStyle.Render(fmt.Sprintf("  %s relaybot Onboard", Logo)))

	if _, err := os.Stat(cfgPath); err == nil {
		// Config exists, ask what to do.
		m := onboardModel{
			choices: []string{
				"Upgrade — add new fields, keep existing values",
				"Overwrite — replace with fresh defaults",
				"Skip — do not modify config",
			},
		}
		p := tea.NewProgram(m)
		final, err := p.Run()
		if err != nil {
			fmt.Println("  " + ErrStyle.Render("Error: "+err.Error()))
			os.Exit(1)
		}
		fm := final.(onboardModel)

		fmt.Println()
		switch fm.choice {
		case choiceUpgrade:
			upgraded, err := config.Upgrade()
			if err != nil {
				fmt.Println("  " + ErrStyle.Render("Error: "+err.Error()))
				os.Exit(1)
			}
			cfg = upgraded
			fmt.Println("  " + OkStyle.Render("✓") + " Upgraded config")
		case choiceOverwrite:
			cfg = config.DefaultConfig()
			if err := config.Save(cfg); err != nil {
				fmt.Println("  " + ErrStyle.Render("Error: "+err.Error()))
				os.Exit(1)
			}
			fmt.Println("  " + OkStyle.Render("✓") + " Overwritten config")
		default:
			fmt.Println("  " + DimStyle.Render("Config unchanged"))
			cfg, _ = config.Load()
		}
	} else {
		cfg = config.DefaultConfig()
		if err := config.Save(cfg); err != nil {
			fmt.Println("  " + ErrStyle.Render("Error: "+err.Error()))
			os.Exit(1)
		}
		fmt.Println()
		fmt.Println("  " + OkStyle.Render("✓") + " Created config at " + DimStyle.Render(cfgPath))
	}

	dataDir := config.DataDir()
	os.MkdirAll(dataDir, 0o755)
	fmt.Println("  " + OkStyle.Render("✓") + " Data dir at " + DimStyle.Render(dataDir))

	sessDir := config.SessionsDir()
	os.MkdirAll(sessDir, 0o755)

	if cfg != nil {
		fmt.Println("  " + OkStyle.Render("✓") + " Database at " + DimStyle.Render(cfg.StoragePath()))
	}

	fmt.Println()
	fmt.Println(OkStyle.Render("  relaybot is ready!"))
	fmt.Println()
	fmt.Println(DimStyle.Render("  Next steps:"))
	fmt.Println(DimStyle.Render("  1. Add your API key to ~/.relaybot/config.json"))
	fmt.Println(DimStyle.Render("  2. Enable a channel (telegram or discord) with its bot token"))
	fmt.Println(DimStyle.Render("  3. Run the gateway: relaybot gateway"))
	fmt.Println(DimStyle.Render("     or chat locally: relaybot chat"))
	fmt.Println()
}
