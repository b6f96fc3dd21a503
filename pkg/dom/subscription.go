/*
Copyright © 2026 Bartłomiej Święcki (byo)

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package dom

import (
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Subscription is a stream of elements matching a selector.
//
// It yields elements present in the document when the subscription was
// created, followed by matching elements from subtrees added later on.
// Each element is reported once for every time it is added to the document.
type Subscription struct {
	doc *Document
	sel cascadia.Selector

	mu      sync.Mutex
	pending []*html.Node
	notify  chan struct{}

	matches   chan *html.Node
	done      chan struct{}
	finished  chan struct{}
	callbacks sync.WaitGroup
	closeOnce sync.Once
}

// Watch subscribes to elements matching given CSS selector.
//
// Elements are never delivered synchronously from within Watch, even those
// already present in the document. The subscription must be closed once
// no longer needed.
func (d *Document) Watch(selector string) (*Subscription, error) {
	sel, err := compileSelector(selector)
	if err != nil {
		return nil, err
	}

	s := &Subscription{
		doc:      d,
		sel:      sel,
		notify:   make(chan struct{}, 1),
		matches:  make(chan *html.Node),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}

	// Snapshot and registration must be atomic so that no element is
	// reported twice or missed
	d.mu.Lock()
	s.push(matchSubtree(sel, d.root, nil))
	d.subs[s] = struct{}{}
	d.mu.Unlock()

	go s.run()

	return s, nil
}

// WatchFunc is like Watch but calls onMatch for each matching element.
//
// Calls are made sequentially from a separate goroutine. The callback must
// not close the subscription it was called from.
func (d *Document) WatchFunc(selector string, onMatch func(el *html.Node)) (*Subscription, error) {
	s, err := d.Watch(selector)
	if err != nil {
		return nil, err
	}

	s.callbacks.Go(func() {
		for el := range s.matches {
			onMatch(el)
		}
	})

	return s, nil
}

// Matches returns the channel with matching elements, the channel
// is closed once the subscription is closed
func (s *Subscription) Matches() <-chan *html.Node {
	return s.matches
}

// Close stops the subscription. Once it returns, no further
// elements will be delivered.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.doc.mu.Lock()
		delete(s.doc.subs, s)
		s.doc.mu.Unlock()

		close(s.done)
		<-s.finished
		s.callbacks.Wait()
	})
}

func (s *Subscription) push(nodes []*html.Node) {
	if len(nodes) == 0 {
		return
	}

	s.mu.Lock()
	s.pending = append(s.pending, nodes...)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) take() []*html.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	ret := s.pending
	s.pending = nil
	return ret
}

func (s *Subscription) run() {
	defer close(s.finished)
	defer close(s.matches)

	for {
		for _, el := range s.take() {
			select {
			case s.matches <- el:
			case <-s.done:
				return
			}
		}

		select {
		case <-s.notify:
		case <-s.done:
			return
		}
	}
}
