/*
Copyright © 2021 the Pace authors.
This file is part of Pace.

Pace is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Pace is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Pace.  If not, see <http://www.gnu.org/licenses/>.
*/

// Command pace is a command-line interface for the Pace atmospheric
// dynamical core.
package main

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/twicki/pace/paceutil"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
		DisableSorting:  true,
	})
	if err := paceutil.Root.Execute(); err != nil {
		logrus.WithError(err).Error("run failed")
		os.Exit(1)
	}
}
