package main

import (
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/viper"

	baseabi "github.com/mitakash/pymaker/base/abi"
	bCtx "github.com/mitakash/pymaker/base/ctx"
	"github.com/mitakash/pymaker/base/ethereum"
	"github.com/mitakash/pymaker/base/log"
	"github.com/mitakash/pymaker/base/metrics"
	"github.com/mitakash/pymaker/base/tracker"
	"github.com/mitakash/pymaker/domain"
	"github.com/mitakash/pymaker/service/chain"
	"github.com/mitakash/pymaker/service/chain/contract"

	goethclient "github.com/ethereum/go-ethereum/ethclient"
)

func init() {
	viper.SetConfigType("yaml")
	viper.SetConfigFile(`configs/keeper/config.yaml`)
	err := viper.ReadInConfig()
	if err != nil {
		panic(err)
	}

	if viper.GetBool(`debug`) {
		log.Log().Info("Service RUN on DEBUG mode")
	}

	// the signing key never lives in the config file
	viper.BindEnv("keeper.privateKey", "KEEPER_PRIVATE_KEY")
}

func main() {
	ctx, cancel := bCtx.WithCancel(bCtx.Background())
	defer cancel()

	// start server to pass cloud run health check
	startEchoServer()

	activeNetwork := viper.GetString("activeNetwork")
	networkInfo := viper.Sub(fmt.Sprintf("networks.%s", activeNetwork))
	chainId := networkInfo.GetInt64("chainId")
	wsUrl := networkInfo.GetString("wsUrl")
	rpcUrl := networkInfo.GetString("rpcUrl")

	contractInfo := viper.Sub(fmt.Sprintf("contract.%s", activeNetwork))
	auctionManagerContract := contractInfo.GetString("auctionManager")
	splitting := contractInfo.GetBool("splitting")
	zrxExchangeContract := contractInfo.GetString("zrxExchange")
	sellTokenContracts := contractInfo.GetStringSlice("tokens")

	lookbackBlocks := viper.GetUint64("keeper.lookbackBlocks")
	workers := viper.GetInt("keeper.workers")

	ctx.WithFields(log.Fields{
		"network":        activeNetwork,
		"chainId":        chainId,
		"wsUrl":          wsUrl,
		"rpcUrl":         rpcUrl,
		"auctionManager": auctionManagerContract,
		"splitting":      splitting,
		"zrxExchange":    zrxExchangeContract,
		"lookbackBlocks": lookbackBlocks,
	}).Info("config")

	ctx.Info("connecting eth clients")
	wsClient, rpcClient := initEthClient(ctx, wsUrl, rpcUrl)
	throttledClient := ethereum.NewThrottledClient(rpcClient, 100)
	errCh := make(chan error, 10)

	keyHex := strings.TrimPrefix(viper.GetString("keeper.privateKey"), "0x")
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		ctx.WithField("err", err).Panic("invalid keeper private key")
	}

	chainService, err := chain.NewClient(ctx, &chain.ClientCfg{
		Eth:     throttledClient,
		ChainId: chainId,
		Key:     key,
	})
	if err != nil {
		ctx.WithField("err", err).Panic("chainService init failed")
	}
	ctx.WithField("account", chainService.Account().Hex()).Info("keeper account")

	manager, err := contract.NewAuctionManager(ctx, &contract.AuctionManagerCfg{
		Client:    chainService,
		Address:   common.HexToAddress(auctionManagerContract),
		Splitting: splitting,
	})
	if err != nil {
		ctx.WithField("err", err).Panic("auction manager init failed")
	}

	if zrxExchangeContract != "" {
		exchange, err := contract.NewZrxExchange(ctx, chainService, common.HexToAddress(zrxExchangeContract))
		if err != nil {
			ctx.WithField("err", err).Panic("zrx exchange init failed")
		}
		var tokens []*contract.Erc20
		for _, addr := range sellTokenContracts {
			tokens = append(tokens, contract.NewErc20(chainService, common.HexToAddress(addr)))
		}
		ctx.Info("approving tokens for the exchange proxy")
		if err := exchange.Approve(ctx, tokens, contract.Directly()); err != nil {
			ctx.WithField("err", err).Panic("exchange approval failed")
		}
	}

	met := metrics.New("keeper")
	account := domain.Address(chainService.Account().Hex()).ToLower()

	handler := tracker.NewAuctionEventHandler(&tracker.AuctionEventHandlerCfg{
		OwnTxs:  manager.OwnTxs(),
		Workers: workers,
	})
	handler.OnNewAuction(func(c bCtx.Ctx, l *baseabi.NewAuctionLog) {
		met.BumpSum("auction.new", 1)
		c.WithField("auctionletId", l.BaseId.String()).Info("new auction")
		inspectAuctionlet(c, manager, account, l.BaseId)
	})
	handler.OnBid(func(c bCtx.Ctx, l *baseabi.BidLog) {
		met.BumpSum("auction.bid", 1)
		c.WithField("auctionletId", l.AuctionletId.String()).Info("external bid")
		inspectAuctionlet(c, manager, account, l.AuctionletId)
	})
	handler.OnSplit(func(c bCtx.Ctx, l *baseabi.SplitLog) {
		met.BumpSum("auction.split", 1)
		c.WithFields(log.Fields{
			"baseId":  l.BaseId.String(),
			"newId":   l.NewId.String(),
			"splitId": l.SplitId.String(),
		}).Info("auctionlet split")
		inspectAuctionlet(c, manager, account, l.NewId)
		inspectAuctionlet(c, manager, account, l.SplitId)
	})
	handler.OnAuctionReversal(func(c bCtx.Ctx, l *baseabi.AuctionReversalLog) {
		met.BumpSum("auction.reversal", 1)
		c.WithField("auctionId", l.AuctionId.String()).Info("auction reversed")
	})
	defer handler.Close()

	auctionTracker, err := tracker.NewEventTracker(&tracker.EventTrackerCfg{
		ChainId:         chainId,
		WsClient:        wsClient,
		RpcClient:       throttledClient,
		ContractAddress: manager.Address(),
		EventHandl:      handler,
		ErrorCh:         errCh,
	})
	if err != nil {
		ctx.WithField("err", err).Panic("new auction tracker failed")
	}

	ctx.Info("discovering recent auctionlets")
	err = manager.DiscoverRecentAuctionlets(ctx, lookbackBlocks, func(id *big.Int) {
		inspectAuctionlet(ctx, manager, account, id)
	})
	if err != nil {
		ctx.WithField("err", err).Panic("auctionlet discovery failed")
	}

	ctx.Info("starting workers")
	auctionTracker.Start(ctx)

	err = <-errCh
	ctx.WithField("err", err).Error("tracker error")
	cancel()
	auctionTracker.Wait()
}

// inspectAuctionlet claims expired auctionlets the keeper has won. Everything
// else is only logged; bidding strategy belongs to the operator.
func inspectAuctionlet(ctx bCtx.Ctx, manager *contract.AuctionManager, account domain.Address, id *big.Int) {
	a, err := manager.GetAuctionlet(ctx, id)
	if err != nil {
		ctx.WithField("err", err).Error("manager.GetAuctionlet failed")
		return
	}
	if a == nil {
		ctx.WithField("auctionletId", id.String()).Info("auctionlet already gone")
		return
	}
	expired, err := a.IsExpired(ctx)
	if err != nil {
		ctx.WithField("err", err).Error("auctionlet.IsExpired failed")
		return
	}
	if expired == nil || !*expired {
		ctx.WithFields(log.Fields{
			"auctionletId": id.String(),
			"lastBidder":   a.LastBidder.ToLowerStr(),
			"buyAmount":    a.BuyAmount.String(),
			"sellAmount":   a.SellAmount.String(),
		}).Info("auctionlet live")
		return
	}
	if !a.Unclaimed || !a.LastBidder.Equals(account) {
		return
	}
	ok, err := a.Claim(ctx)
	if err != nil {
		ctx.WithField("err", err).Error("auctionlet.Claim failed")
		return
	}
	ctx.WithFields(log.Fields{
		"auctionletId": id.String(),
		"claimed":      ok,
	}).Info("claimed expired auctionlet")
}

func initEthClient(ctx bCtx.Ctx, wsUrl, rpcUrl string) (*goethclient.Client, *goethclient.Client) {
	wsClient, err := goethclient.Dial(wsUrl)
	if err != nil {
		ctx.WithField("err", err).Panic("dial ws client failed")
	}
	rpcClient, err := goethclient.Dial(rpcUrl)
	if err != nil {
		ctx.WithField("err", err).Panic("dial rpc client failed")
	}
	return wsClient, rpcClient
}

func startEchoServer() {
	context := bCtx.Background()

	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.GET("/", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	address := viper.GetString("server.address")
	context.WithField("address", address).Info("starting server")
	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			context.Error("shutting down the server")
		}
	}()
}
