package setup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/riskwatch/config"
	"github.com/vadiminshakov/riskwatch/internal/domain"
)

// DefaultFile is where the wizard writes the configuration.
const DefaultFile = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers collected by the wizard.
type Answers struct {
	WalletAddress   string
	PrivateKey      string
	Network         string
	Days            string
	RefreshInterval string
	ListenAddr      string
}

func defaultAnswers() Answers {
	return Answers{
		Network:         string(config.NetworkMainnet),
		Days:            strconv.Itoa(domain.DefaultTradeHistoryDays),
		RefreshInterval: "60s",
		ListenAddr:      ":8080",
	}
}

func step(title string) {
	fmt.Print("\033[H\033[2J") // clear screen
	fmt.Println(headerStyle.Render("RISKWATCH CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(title))
}

// RunTUI launches the terminal configuration wizard and writes the result to path.
func RunTUI(path string) error {
	if path == "" {
		path = DefaultFile
	}
	a := defaultAnswers()
	var confirm bool

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("RISKWATCH CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Point the dashboard at your Hyperliquid wallet.\n"))

	fmt.Println(stepStyle.Render("STEP 1: WALLET"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Wallet Address").
				Description("The account to monitor (0x...)").
				Value(&a.WalletAddress).
				Validate(validateAddress),
			huh.NewInput().
				Title("Private Key").
				Description("API or main wallet key, hex encoded").
				Value(&a.PrivateKey).
				EchoMode(huh.EchoModePassword).
				Validate(validatePrivateKey),
		),
	).Run()
	if err != nil {
		return err
	}

	step("STEP 2: NETWORK")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select Network").
				Options(
					huh.NewOption("Mainnet", string(config.NetworkMainnet)),
					huh.NewOption("Testnet", string(config.NetworkTestnet)),
				).
				Value(&a.Network),
		),
	).Run()
	if err != nil {
		return err
	}

	step("STEP 3: DASHBOARD")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Trade History Days").
				Description("Default window shown, 1-7").
				Value(&a.Days).
				Validate(validateDays),
			huh.NewInput().
				Title("Refresh Interval").
				Description("Duration string, at least 5s (e.g. 30s, 1m)").
				Value(&a.RefreshInterval).
				Validate(validateInterval),
			huh.NewInput().
				Title("Listen Address").
				Value(&a.ListenAddr),
		),
	).Run()
	if err != nil {
		return err
	}

	step("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Wallet: %s\nNetwork: %s\nHistory: %s days\nRefresh: %s\nListen: %s\n",
		a.WalletAddress, a.Network, a.Days, a.RefreshInterval, a.ListenAddr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return errors.New("setup cancelled by user")
	}

	if err := Write(path, a); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nRun: riskwatch --config %s", path, path)))
	return nil
}

// Write validates the answers and stores them as a yaml config file readable by config.Get.
func Write(path string, a Answers) error {
	interval, err := time.ParseDuration(a.RefreshInterval)
	if err != nil {
		return errors.Wrap(err, "parse refresh interval")
	}

	tmp := config.ConfigTmp{
		WalletAddress:       strings.TrimSpace(a.WalletAddress),
		PrivateKey:          strings.TrimSpace(a.PrivateKey),
		Testnet:             a.Network == string(config.NetworkTestnet),
		TradeHistoryDaysStr: strings.TrimSpace(a.Days),
		RefreshInterval:     interval,
		ListenAddr:          strings.TrimSpace(a.ListenAddr),
	}
	if _, err := config.FromTmp(tmp); err != nil {
		return err
	}

	data, err := yaml.Marshal(tmp)
	if err != nil {
		return errors.Wrap(err, "failed to generate yaml")
	}
	// the file holds a private key
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, "failed to save config file")
	}
	return nil
}

func validateAddress(s string) error {
	if !common.IsHexAddress(strings.TrimSpace(s)) || !strings.HasPrefix(strings.TrimSpace(s), "0x") {
		return errors.New("must be a 0x-prefixed 20-byte hex address")
	}
	return nil
}

func validatePrivateKey(s string) error {
	if _, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(s), "0x")); err != nil {
		return errors.New("must be a 32-byte hex private key")
	}
	return nil
}

func validateDays(s string) error {
	d, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return errors.New("must be a whole number")
	}
	if d < domain.MinTradeHistoryDays || d > domain.MaxTradeHistoryDays {
		return errors.Errorf("must be between %d and %d", domain.MinTradeHistoryDays, domain.MaxTradeHistoryDays)
	}
	return nil
}

func validateInterval(s string) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return errors.New("must be a duration such as 30s or 1m")
	}
	if d < 5*time.Second {
		return errors.New("must be at least 5s")
	}
	return nil
}
