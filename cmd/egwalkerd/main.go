// Command egwalkerd runs the collaboration server: HTTP + WebSocket
// frontend, Kafka-backed op shipping between instances, MySQL-backed
// oplog persistence, and Redis-backed presence tracking.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/loomtext/egwalker/config"
	"github.com/loomtext/egwalker/presence"
	"github.com/loomtext/egwalker/server"
	"github.com/loomtext/egwalker/store"
	"github.com/loomtext/egwalker/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("egwalkerd: config: %v", err)
	}
	log.Printf("egwalkerd: config loaded: %+v", cfg)

	var st *store.Store
	if cfg.Mysql.DSN != "" {
		db, err := gorm.Open(mysql.Open(cfg.Mysql.DSN), &gorm.Config{})
		if err != nil {
			log.Fatalf("egwalkerd: mysql: %v", err)
		}
		st = store.New(db)
		if err := st.AutoMigrate(); err != nil {
			log.Fatalf("egwalkerd: automigrate: %v", err)
		}
	}

	var pres *presence.Registry
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("egwalkerd: redis: %v", err)
		}
		pres = presence.New(rdb, cfg.Redis.TTL)
	}

	var shipper *transport.Shipper
	if len(cfg.Kafka.Brokers) > 0 {
		shipper, err = transport.NewShipper(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Fatalf("egwalkerd: kafka: %v", err)
		}
		defer shipper.Close()

		consumer, err := transport.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Fatalf("egwalkerd: kafka consumer: %v", err)
		}
		defer consumer.Close()

		srv := server.New(shipper, pres, st)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			if err := consumer.Run(ctx, srv.Merge); err != nil && ctx.Err() == nil {
				log.Printf("egwalkerd: consumer stopped: %v", err)
			}
		}()

		addr := fmt.Sprintf(":%d", cfg.Running.Port)
		log.Printf("egwalkerd: listening on %s", addr)
		log.Fatal(http.ListenAndServe(addr, srv.Router()))
		return
	}

	srv := server.New(nil, pres, st)
	addr := fmt.Sprintf(":%d", cfg.Running.Port)
	log.Printf("egwalkerd: listening on %s (no kafka configured)", addr)
	log.Fatal(http.ListenAndServe(addr, srv.Router()))
}
