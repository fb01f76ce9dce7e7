package main

import (
	"airquality-alert-bot/bot"
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	c, err := bot.LoadConfig("./config.json")
	if err != nil {
		log.Fatalf("unable to load config: %v", err.Error())
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	confirm := make(chan struct{})
	go func() {
		err := bot.Start(ctx, c, confirm)
		if err != nil {
			log.Fatal(err)
		}
	}()
	s := make(chan os.Signal, 1)
	signal.Notify(s, os.Interrupt, syscall.SIGTERM)
	<-s
	cancel()
	<-confirm
}
