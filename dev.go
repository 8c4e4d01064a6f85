package main

import (
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/howeyc/fsnotify"

	"github.com/shlevy/riscv-qemu/chardev"
)

// devMode watches scriptFile and replays it against a fresh machine on
// every change, with the monitor showing the result. The backend is always
// a pipe; scripts feed the device input with "in".
func devMode(scriptFile string, base uint32) error {
	scriptFile = filepath.Clean(scriptFile)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Watch(filepath.Dir(scriptFile)); err != nil {
		return err
	}

	mon := newMonitor()
	var (
		mu  sync.Mutex
		cur *machine
	)
	mon.get = func() *machine {
		mu.Lock()
		defer mu.Unlock()
		return cur
	}
	replay := make(chan bool, 1)
	mon.reset = func() {
		select {
		case replay <- true:
		default:
		}
	}

	log.SetPrefix("")
	log.SetOutput(mon.log)
	defer func() {
		log.SetOutput(os.Stderr)
		log.SetPrefix("riscv-qemu: ")
	}()

	quit := make(chan bool)
	go func() {
		run := time.After(1 * time.Millisecond)
		for {
			select {
			case <-run:
				log.Printf("dev: load %s", filepath.Base(scriptFile))
				sc, err := parseScriptFile(scriptFile)
				if err != nil {
					log.Printf("dev: %v", err)
					break
				}
				host := chardev.NewPipe()
				m, err := newMachine(base,
					&notifyBackend{Backend: host, notify: mon.refresh},
					func(bool) { mon.refresh() })
				if err != nil {
					log.Printf("dev: %v", err)
					break
				}
				m.host = host
				mu.Lock()
				cur = m
				mu.Unlock()
				log.Print("dev: run")
				if err := sc.run(m, log.Printf); err != nil {
					log.Printf("dev: %v", err)
				}
				mon.refresh()
			case <-replay:
				run = time.After(1 * time.Millisecond)
			case ev := <-watcher.Event:
				if ev.Name == scriptFile && !ev.IsAttrib() {
					run = time.After(100 * time.Millisecond)
				}
			case err := <-watcher.Error:
				log.Printf("dev: watcher: %v", err)
			case <-quit:
				return
			}
		}
	}()

	err = mon.Run()
	close(quit)
	return err
}
