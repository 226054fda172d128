// Package cli is the operator console of the simulation: an interactive tview application or a
// headless line reader sharing the same command grammar.
package cli

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mblichar/raft-sim/src/logging"
	"github.com/rivo/tview"
)

const refreshInterval = 100 * time.Millisecond

// StartConsole runs the interactive console until the operator quits with Ctrl-C or ctx is cancelled
func StartConsole(ctx context.Context, simulation Simulation, logs chan logging.LoggerEntry) error {
	app, appQuit := setupApp(simulation, logs)
	defer close(appQuit)

	go func() {
		select {
		case <-ctx.Done():
			app.Stop()
		case <-appQuit:
		}
	}()

	return app.Run()
}

func setupApp(simulation Simulation, logs chan logging.LoggerEntry) (*tview.Application, chan struct{}) {
	flex := tview.NewFlex()
	flex.SetDirection(tview.FlexRow)

	configTextView := tview.NewTextView()
	configTextView.SetBorder(true).SetTitle("Config")
	flex.AddItem(configTextView, 3, 1, false)

	nodesStateTextView := tview.NewTextView()
	nodesStateTextView.SetBorder(true).SetTitle("Nodes State")
	flex.AddItem(nodesStateTextView, 0, 2, false)

	clientsTextView := tview.NewTextView()
	clientsTextView.SetBorder(true).SetTitle("Clients")
	flex.AddItem(clientsTextView, 0, 1, false)

	loggerTextView := tview.NewTextView().SetDynamicColors(true).SetMaxLines(1000)
	loggerTextView.SetBorder(true).SetTitle("Logs")
	flex.AddItem(loggerTextView, 0, 3, false)

	commandsInputField := tview.NewInputField()
	commandsInputField.SetBorder(true).SetTitle("Commands Input")
	flex.AddItem(commandsInputField, 3, 1, true)

	appQuit := make(chan struct{})
	app := tview.NewApplication().SetRoot(flex, true)

	go renderLogs(logs, loggerTextView, appQuit)
	go listenForUserCommands(commandsInputField, simulation, logging.CreateLogger("[green][COMMAND[]", logs), appQuit)
	go func() {
		for {
			select {
			case <-time.After(refreshInterval):
				app.QueueUpdateDraw(func() {
					configTextView.Clear()
					renderConfig(simulation, configTextView)
					nodesStateTextView.Clear()
					renderNodesState(simulation.Statuses(), nodesStateTextView)
					clientsTextView.Clear()
					renderClients(simulation, clientsTextView)
				})
			case <-appQuit:
				return
			}
		}
	}()
	return app, appQuit
}

func listenForUserCommands(inputField *tview.InputField, simulation Simulation, logger *logging.Logger, quit chan struct{}) {
	commandsChannel := make(chan string, 1)
	inputField.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			command := inputField.GetText()
			inputField.SetText("")
			if len(command) > 0 {
				select {
				case commandsChannel <- command:
				default:
					logger.Warnf("'%s' dropped, previous command still running", command)
				}
			}
		}
	})

	for {
		select {
		case command := <-commandsChannel:
			handleLine(command, simulation, logger)
		case <-quit:
			return
		}
	}
}

// RunHeadless executes operator commands read line by line from input and writes logs to output until
// ctx is cancelled. The simulation keeps running once input is exhausted.
func RunHeadless(ctx context.Context, simulation Simulation, input io.Reader, output io.Writer,
	logs chan logging.LoggerEntry) error {
	quit := make(chan struct{})
	drained := make(chan struct{})
	go func() {
		logging.Drain(logs, output, quit)
		close(drained)
	}()
	defer func() {
		close(quit)
		<-drained
	}()

	logger := logging.CreateLogger("[COMMAND]", logs)
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(input)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case line := <-lines:
			if len(line) > 0 {
				handleLine(line, simulation, logger)
			}
		case err := <-scanErr:
			if err != nil {
				return err
			}
			scanErr = nil
		case <-ctx.Done():
			return nil
		}
	}
}
