package main

import (
	"github.com/arkade-os/colorcore/internal/core/application"
	"github.com/urfave/cli/v2"
)

const (
	addressFlagName  = "address"
	minConfFlagName  = "minconf"
	maxConfFlagName  = "maxconf"
	fromFlagName     = "from"
	toFlagName       = "to"
	amountFlagName   = "amount"
	assetFlagName    = "asset"
	quantityFlagName = "quantity"
	metadataFlagName = "metadata"
	modeFlagName     = "mode"
	idFlagName       = "id"
	issuerFlagName   = "issuer"
	pledgeFlagName   = "pledge-address"
	supplyFlagName   = "supply-cap"
	priceFlagName    = "price"
	watchFlagName    = "watch"

	defaultMinConf = 1
	defaultMaxConf = 9999999
)

var (
	addressFlag = &cli.StringSliceFlag{
		Name:    addressFlagName,
		Aliases: []string{"a"},
		Usage:   "only consider the outputs of the given addresses",
	}
	minConfFlag = &cli.IntFlag{
		Name:  minConfFlagName,
		Usage: "minimum confirmations of the outputs",
		Value: defaultMinConf,
	}
	maxConfFlag = &cli.IntFlag{
		Name:  maxConfFlagName,
		Usage: "maximum confirmations of the outputs",
		Value: defaultMaxConf,
	}
	fromFlag = &cli.StringFlag{
		Name:     fromFlagName,
		Usage:    "address spending the outputs, it also receives the change",
		Required: true,
	}
	toFlag = &cli.StringFlag{
		Name:     toFlagName,
		Usage:    "recipient address",
		Required: true,
	}
	amountFlag = &cli.Uint64Flag{
		Name:     amountFlagName,
		Usage:    "amount to send in satoshis",
		Required: true,
	}
	assetFlag = &cli.StringFlag{
		Name:     assetFlagName,
		Usage:    "id of the asset to send",
		Required: true,
	}
	quantityFlag = &cli.Uint64Flag{
		Name:     quantityFlagName,
		Usage:    "quantity of asset units",
		Required: true,
	}
	metadataFlag = &cli.StringFlag{
		Name:  metadataFlagName,
		Usage: "metadata of the issued asset, eg. u=https://example.com/asset.json",
	}
	modeFlag = &cli.StringFlag{
		Name:  modeFlagName,
		Usage: "what to do with the built transaction (broadcast, signed, unsigned)",
		Value: string(application.TxModeBroadcast),
	}
	crowdsaleIdFlag = &cli.StringFlag{
		Name:     idFlagName,
		Usage:    "crowdsale id",
		Required: true,
	}
	newCrowdsaleIdFlag = &cli.StringFlag{
		Name:  idFlagName,
		Usage: "crowdsale id, a random one is generated if missing",
	}
	crowdsaleAssetFlag = &cli.StringFlag{
		Name:     assetFlagName,
		Usage:    "id of the asset sold, it must be held by the issuer address",
		Required: true,
	}
	issuerFlag = &cli.StringFlag{
		Name:     issuerFlagName,
		Usage:    "address holding the asset units to distribute",
		Required: true,
	}
	pledgeFlag = &cli.StringFlag{
		Name:     pledgeFlagName,
		Usage:    "address receiving the pledges",
		Required: true,
	}
	supplyFlag = &cli.Uint64Flag{
		Name:     supplyFlagName,
		Usage:    "maximum quantity of asset units sold",
		Required: true,
	}
	priceFlag = &cli.StringSliceFlag{
		Name: priceFlagName,
		Usage: "price tier in the form <threshold>:<satoshis per unit>, " +
			"the first tier must start at 0",
		Required: true,
	}
	watchFlag = &cli.BoolFlag{
		Name:  watchFlagName,
		Usage: "keep distributing new pledges until interrupted",
	}
)
