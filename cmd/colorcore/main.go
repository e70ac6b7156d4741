package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/arkade-os/colorcore/internal/config"
	"github.com/arkade-os/colorcore/internal/core/application"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// Version will be set during build time
var Version string

var cfg *config.Config

func main() {
	app := cli.NewApp()
	app.Version = Version
	app.Name = "colorcore"
	app.Usage = "open assets colored coins on top of a bitcoind wallet"
	app.Flags = config.Flags
	app.Commands = append(
		app.Commands,
		&getBalanceCommand,
		&listUnspentCommand,
		&sendBitcoinCommand,
		&sendAssetCommand,
		&issueAssetCommand,
		&distributeCommand,
		&crowdsaleCommand,
	)
	app.Before = func(c *cli.Context) error {
		loaded, err := config.LoadConfig(c)
		if err != nil {
			return fmt.Errorf("invalid config: %s", err)
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid config: %s", err)
		}
		log.SetLevel(log.Level(loaded.LogLevel))
		log.Debugf("config: %s", loaded)
		cfg = loaded
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(fmt.Errorf("error: %v", err))
		os.Exit(1)
	}
}

var (
	getBalanceCommand = cli.Command{
		Name:   "getbalance",
		Usage:  "Shows the bitcoin and asset balance of every address of the wallet",
		Flags:  []cli.Flag{addressFlag, minConfFlag, maxConfFlag},
		Action: withService(getBalance),
	}
	listUnspentCommand = cli.Command{
		Name:   "listunspent",
		Usage:  "Lists the colored unspent outputs of the wallet",
		Flags:  []cli.Flag{addressFlag, minConfFlag, maxConfFlag},
		Action: withService(listUnspent),
	}
	sendBitcoinCommand = cli.Command{
		Name:   "sendbitcoin",
		Usage:  "Sends bitcoin from an address without spending colored outputs",
		Flags:  []cli.Flag{fromFlag, toFlag, amountFlag, modeFlag},
		Action: withService(sendBitcoin),
	}
	sendAssetCommand = cli.Command{
		Name:   "sendasset",
		Usage:  "Sends units of an asset from an address",
		Flags:  []cli.Flag{fromFlag, toFlag, assetFlag, quantityFlag, modeFlag},
		Action: withService(sendAsset),
	}
	issueAssetCommand = cli.Command{
		Name:   "issueasset",
		Usage:  "Issues units of the asset bound to the from address",
		Flags:  []cli.Flag{fromFlag, toFlag, quantityFlag, metadataFlag, modeFlag},
		Action: withService(issueAsset),
	}
	distributeCommand = cli.Command{
		Name:   "distribute",
		Usage:  "Pays the pledges of a crowdsale with units of its asset",
		Flags:  []cli.Flag{crowdsaleIdFlag, modeFlag, watchFlag},
		Action: withService(distribute),
	}
	crowdsaleCommand = cli.Command{
		Name:  "crowdsale",
		Usage: "Manages crowdsales",
		Subcommands: cli.Commands{
			{
				Name:  "create",
				Usage: "Creates a new crowdsale",
				Flags: []cli.Flag{
					newCrowdsaleIdFlag, crowdsaleAssetFlag, issuerFlag, pledgeFlag,
					supplyFlag, priceFlag,
				},
				Action: withService(createCrowdsale),
			},
			{
				Name:   "close",
				Usage:  "Closes a crowdsale, pledges are not paid anymore",
				Flags:  []cli.Flag{crowdsaleIdFlag},
				Action: withService(closeCrowdsale),
			},
			{
				Name:   "status",
				Usage:  "Shows a crowdsale and its distributions",
				Flags:  []cli.Flag{crowdsaleIdFlag},
				Action: withService(crowdsaleStatus),
			},
		},
	}
)

type action func(*cli.Context, application.Service) error

func withService(fn action) cli.ActionFunc {
	return func(c *cli.Context) error {
		svc, err := cfg.AppService()
		if err != nil {
			return err
		}
		defer cfg.Close()
		defer svc.Stop()

		return fn(c, svc)
	}
}

func getBalance(c *cli.Context, svc application.Service) error {
	balances, err := svc.GetBalance(
		c.Context, c.StringSlice(addressFlagName), c.Int(minConfFlagName), c.Int(maxConfFlagName),
	)
	if err != nil {
		return err
	}
	return printJSON(balances)
}

func listUnspent(c *cli.Context, svc application.Service) error {
	outputs, err := svc.ListUnspent(
		c.Context, c.StringSlice(addressFlagName), c.Int(minConfFlagName), c.Int(maxConfFlagName),
	)
	if err != nil {
		return err
	}
	return printJSON(outputs)
}

func sendBitcoin(c *cli.Context, svc application.Service) error {
	mode, err := application.ParseTxMode(c.String(modeFlagName))
	if err != nil {
		return err
	}
	res, err := svc.SendBitcoin(c.Context, application.SendBitcoinRequest{
		From:   c.String(fromFlagName),
		To:     c.String(toFlagName),
		Amount: c.Uint64(amountFlagName),
		Mode:   mode,
	})
	if err != nil {
		return err
	}
	return printJSON(res)
}

func sendAsset(c *cli.Context, svc application.Service) error {
	mode, err := application.ParseTxMode(c.String(modeFlagName))
	if err != nil {
		return err
	}
	res, err := svc.SendAsset(c.Context, application.SendAssetRequest{
		From:     c.String(fromFlagName),
		To:       c.String(toFlagName),
		AssetId:  c.String(assetFlagName),
		Quantity: c.Uint64(quantityFlagName),
		Mode:     mode,
	})
	if err != nil {
		return err
	}
	return printJSON(res)
}

func issueAsset(c *cli.Context, svc application.Service) error {
	mode, err := application.ParseTxMode(c.String(modeFlagName))
	if err != nil {
		return err
	}
	var metadata []byte
	if m := c.String(metadataFlagName); len(m) > 0 {
		metadata = []byte(m)
	}
	res, err := svc.IssueAsset(c.Context, application.IssueAssetRequest{
		From:     c.String(fromFlagName),
		To:       c.String(toFlagName),
		Quantity: c.Uint64(quantityFlagName),
		Metadata: metadata,
		Mode:     mode,
	})
	if err != nil {
		return err
	}
	return printJSON(res)
}

func distribute(c *cli.Context, svc application.Service) error {
	mode, err := application.ParseTxMode(c.String(modeFlagName))
	if err != nil {
		return err
	}
	crowdsaleId := c.String(idFlagName)

	if !c.Bool(watchFlagName) {
		results, err := svc.Distribute(c.Context, crowdsaleId, mode)
		if err != nil {
			return err
		}
		return printJSON(toPledgeViews(results))
	}

	if err := svc.WatchCrowdsale(crowdsaleId, mode); err != nil {
		return err
	}
	log.Infof("watching crowdsale %s, press ctrl+c to stop", crowdsaleId)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, os.Interrupt)
	<-sigChan

	log.Info("shutting down...")
	return nil
}

func createCrowdsale(c *cli.Context, svc application.Service) error {
	schedule, err := parsePriceSchedule(c.StringSlice(priceFlagName))
	if err != nil {
		return err
	}
	crowdsale, err := svc.CreateCrowdsale(c.Context, application.CreateCrowdsaleRequest{
		Id:            c.String(idFlagName),
		AssetId:       c.String(assetFlagName),
		IssuerAddress: c.String(issuerFlagName),
		PledgeAddress: c.String(pledgeFlagName),
		SupplyCap:     c.Uint64(supplyFlagName),
		PriceSchedule: schedule,
	})
	if err != nil {
		return err
	}
	return printJSON(toCrowdsaleView(*crowdsale))
}

func closeCrowdsale(c *cli.Context, svc application.Service) error {
	crowdsale, err := svc.CloseCrowdsale(c.Context, c.String(idFlagName))
	if err != nil {
		return err
	}
	return printJSON(toCrowdsaleView(*crowdsale))
}

func crowdsaleStatus(c *cli.Context, svc application.Service) error {
	info, err := svc.GetCrowdsale(c.Context, c.String(idFlagName))
	if err != nil {
		return err
	}
	return printJSON(toCrowdsaleInfoView(*info))
}
